package core_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/geoimport/internal/ags"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/core/tables"
	"github.com/JonMunkholm/geoimport/internal/store/memory"
)

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseNumber covers every numeric cell of an import.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{"12", "-4.50", "  203410.00 ", "1e-3", "0.125"}

	for b.Loop() {
		for _, tc := range testCases {
			_, _ = core.ParseNumber(tc)
		}
	}
}

// BenchmarkParseDate walks the layout list, so late layouts cost the most.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"2024-03-01",       // First layout
		"2024-03-01T09:30", // Datetime
		"01/03/2024 09:30", // Late layout
		"2024-03",          // Last layout
	}

	for b.Loop() {
		for _, tc := range testCases {
			_, _ = core.ParseDate(tc)
		}
	}
}

func BenchmarkCoerce_Text(b *testing.B) {
	v := "Soft brown CLAY"
	for b.Loop() {
		_, _ = core.Coerce(core.KindText, &v)
	}
}

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

// siteText renders a document with n locations, each carrying two samples,
// two geology layers and one moisture content test.
func siteText(n int) string {
	var b strings.Builder
	b.WriteString("\"GROUP\",\"LOCA\"\n\"HEADING\",\"LOCA_ID\",\"LOCA_TYPE\",\"LOCA_GL\"\n\"UNIT\",\"\",\"\",\"m\"\n\"TYPE\",\"ID\",\"PA\",\"2DP\"\n")
	for i := range n {
		fmt.Fprintf(&b, "\"DATA\",\"BH%d\",\"CP\",\"%d.00\"\n", i, 10+i%5)
	}

	b.WriteString("\n\"GROUP\",\"SAMP\"\n\"HEADING\",\"LOCA_ID\",\"SAMP_TOP\",\"SAMP_REF\",\"SAMP_TYPE\"\n\"UNIT\",\"\",\"m\",\"\",\"\"\n\"TYPE\",\"ID\",\"2DP\",\"X\",\"PA\"\n")
	for i := range n {
		fmt.Fprintf(&b, "\"DATA\",\"BH%d\",\"1.00\",\"1\",\"U\"\n\"DATA\",\"BH%d\",\"2.50\",\"2\",\"D\"\n", i, i)
	}

	b.WriteString("\n\"GROUP\",\"GEOL\"\n\"HEADING\",\"LOCA_ID\",\"GEOL_TOP\",\"GEOL_BASE\",\"GEOL_DESC\"\n\"UNIT\",\"\",\"m\",\"m\",\"\"\n\"TYPE\",\"ID\",\"2DP\",\"2DP\",\"X\"\n")
	for i := range n {
		fmt.Fprintf(&b, "\"DATA\",\"BH%d\",\"0.00\",\"1.20\",\"CLAY\"\n\"DATA\",\"BH%d\",\"1.20\",\"4.00\",\"SAND\"\n", i, i)
	}

	b.WriteString("\n\"GROUP\",\"LNMC\"\n\"HEADING\",\"LOCA_ID\",\"SAMP_TOP\",\"SAMP_REF\",\"SAMP_TYPE\",\"SPEC_REF\",\"SPEC_DPTH\",\"LNMC_MC\"\n\"UNIT\",\"\",\"m\",\"\",\"\",\"\",\"m\",\"%\"\n\"TYPE\",\"ID\",\"2DP\",\"X\",\"PA\",\"X\",\"2DP\",\"2SF\"\n")
	for i := range n {
		fmt.Fprintf(&b, "\"DATA\",\"BH%d\",\"1.00\",\"1\",\"U\",\"A\",\"1.10\",\"21\"\n", i)
	}
	return b.String()
}

// BenchmarkParse measures lexing and group assembly for a mid-sized file.
func BenchmarkParse(b *testing.B) {
	text := siteText(500)
	b.SetBytes(int64(len(text)))

	for b.Loop() {
		if _, err := ags.Parse(text); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSummarize_AllExisting reconciles a file whose records are all
// stored already, which exercises the ancestor matching on every record.
func BenchmarkSummarize_AllExisting(b *testing.B) {
	ctx := context.Background()
	reg, err := tables.Registry()
	if err != nil {
		b.Fatal(err)
	}
	doc, err := ags.Parse(siteText(200))
	if err != nil {
		b.Fatal(err)
	}

	st := memory.New(reg.Schema())
	deps := core.Deps{Store: st, Registry: reg, Concurrency: 4}
	first, err := core.Summarize(ctx, deps, doc, "p1")
	if err != nil {
		b.Fatal(err)
	}
	if _, err := core.Commit(ctx, st, reg, first); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := core.Summarize(ctx, deps, doc, "p1"); err != nil {
			b.Fatal(err)
		}
	}
}
