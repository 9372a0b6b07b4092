package ags

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const locaDoc = "\"GROUP\",\"LOCA\"\n" +
	"\"HEADING\",\"LOCA_ID\",\"LOCA_LAT\"\n" +
	"\"UNIT\",\"\",\"deg\"\n" +
	"\"TYPE\",\"ID\",\"2DP\"\n" +
	"\"DATA\",\"BH1\",\"51.50\""

// ----------------------------------------------------------------------------
// Lexer
// ----------------------------------------------------------------------------

func TestLines(t *testing.T) {
	got := slices.Collect(Lines("\"A\",\"B\"\r\n\"C\",D\n\n\"E\""))

	want := [][]string{{"A", "B"}, {"C", "D"}, {""}, {"E"}}
	assert.Equal(t, want, got)
}

func TestLines_StopsEarly(t *testing.T) {
	var seen int
	for range Lines("a\nb\nc") {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`"GROUP","LOCA"`, []string{"GROUP", "LOCA"}},
		{`"DATA","",""`, []string{"DATA", "", ""}},
		{`DATA,BH1, 2.5 `, []string{"DATA", "BH1", "2.5"}},
		{`"DATA","unbalanced`, []string{"DATA", "unbalanced"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitFields(tt.in), "SplitFields(%q)", tt.in)
	}
}

// ----------------------------------------------------------------------------
// Group parser
// ----------------------------------------------------------------------------

func TestParseGroup_Simple(t *testing.T) {
	g, err := ParseGroup(Lines(locaDoc), 1)
	require.NoError(t, err)

	assert.Equal(t, "LOCA", g.Name)
	assert.Equal(t, 1, g.Rows())
	assert.Equal(t, []string{"BH1"}, g.Columns["LOCA_ID"].Data)
	assert.Equal(t, []string{"51.50"}, g.Columns["LOCA_LAT"].Data)
	assert.Equal(t, Heading{Name: "LOCA_LAT", Unit: "deg", Type: "2DP"}, g.Columns["LOCA_LAT"].Heading)
	assert.Equal(t, []Heading{
		{Name: "LOCA_ID", Unit: "", Type: "ID"},
		{Name: "LOCA_LAT", Unit: "deg", Type: "2DP"},
	}, g.Headings())
}

func TestParseGroup_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{
			name:     "missing preamble lines",
			text:     "\"GROUP\",\"LOCA\"\n\"HEADING\",\"LOCA_ID\"",
			wantLine: 2,
		},
		{
			name:     "data row too wide",
			text:     "\"GROUP\",\"LOCA\"\n\"HEADING\",\"LOCA_ID\"\n\"UNIT\",\"\"\n\"TYPE\",\"ID\"\n\"DATA\",\"BH1\",\"extra\"",
			wantLine: 5,
		},
		{
			name:     "unit width differs",
			text:     "\"GROUP\",\"LOCA\"\n\"HEADING\",\"LOCA_ID\",\"X\"\n\"UNIT\",\"\"\n\"TYPE\",\"ID\",\"X\"",
			wantLine: 3,
		},
		{
			name:     "wrong marker order",
			text:     "\"GROUP\",\"LOCA\"\n\"UNIT\",\"\"\n\"HEADING\",\"LOCA_ID\"\n\"TYPE\",\"ID\"",
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGroup(Lines(tt.text), 1)

			var mErr *MalformedGroupError
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, tt.wantLine, mErr.Line)
		})
	}
}

// ----------------------------------------------------------------------------
// Document parser
// ----------------------------------------------------------------------------

func TestParse_SimpleScenario(t *testing.T) {
	doc, err := Parse(locaDoc)
	require.NoError(t, err)

	require.Len(t, doc.Groups, 1)
	g := doc.Group("LOCA")
	require.NotNil(t, g)
	assert.Equal(t, []string{"BH1"}, g.Columns["LOCA_ID"].Data)
	assert.Equal(t, []string{"51.50"}, g.Columns["LOCA_LAT"].Data)
}

func TestParse_MultipleGroupsWithPreambleAndCRLF(t *testing.T) {
	text := strings.Join([]string{
		`"PROJ_NOTE","exported by logger"`,
		`"GROUP","LOCA"`,
		`"HEADING","LOCA_ID"`,
		`"UNIT",""`,
		`"TYPE","ID"`,
		`"DATA","BH1"`,
		`"DATA","BH2"`,
		``,
		`"GROUP","SAMP"`,
		`"HEADING","LOCA_ID","SAMP_TOP"`,
		`"UNIT","","m"`,
		`"TYPE","ID","2DP"`,
		`"DATA","BH1","1.00"`,
		``,
	}, "\r\n")

	doc, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, []string{"LOCA", "SAMP"}, doc.Names())
	assert.Equal(t, 2, doc.Group("LOCA").Rows())
	assert.Equal(t, []string{"1.00"}, doc.Group("SAMP").Columns["SAMP_TOP"].Data)
}

func TestParse_DuplicateGroup(t *testing.T) {
	_, err := Parse(locaDoc + "\n" + locaDoc)

	var dErr *DuplicateGroupError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "LOCA", dErr.Group)
	assert.Equal(t, 6, dErr.Line)
}

func TestParse_MalformedGroupReportsDocumentLine(t *testing.T) {
	text := locaDoc + "\n\"GROUP\",\"SAMP\"\n\"HEADING\",\"SAMP_TOP\"\n\"UNIT\",\"m\"\n\"TYPE\",\"2DP\"\n\"DATA\",\"1\",\"2\""

	_, err := Parse(text)

	var mErr *MalformedGroupError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "SAMP", mErr.Group)
	assert.Equal(t, 10, mErr.Line)
}

func TestDocumentValidate_ColumnLengthMismatch(t *testing.T) {
	doc, err := Parse(locaDoc)
	require.NoError(t, err)

	g := doc.Group("LOCA")
	g.Columns["LOCA_LAT"].Data = append(g.Columns["LOCA_LAT"].Data, "52.00")

	err = doc.validate()
	var cErr *ColumnLengthMismatchError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "LOCA_LAT", cErr.Column)
	assert.Equal(t, 2, cErr.Got)
	assert.Equal(t, 1, cErr.Want)
}

func TestParse_GeneratedGroupsKeepRowCount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		cols := 1 + rng.Intn(6)
		rows := rng.Intn(20)

		var b strings.Builder
		headings := make([]string, cols)
		for i := range headings {
			headings[i] = fmt.Sprintf(`"H%d"`, i)
		}
		fmt.Fprintf(&b, "\"GROUP\",\"G%d\"\n", iter)
		fmt.Fprintf(&b, "\"HEADING\",%s\n", strings.Join(headings, ","))
		fmt.Fprintf(&b, "\"UNIT\"%s\n", strings.Repeat(`,""`, cols))
		fmt.Fprintf(&b, "\"TYPE\"%s\n", strings.Repeat(`,"X"`, cols))
		for r := 0; r < rows; r++ {
			b.WriteString(`"DATA"`)
			for c := 0; c < cols; c++ {
				fmt.Fprintf(&b, `,"v%d"`, rng.Intn(1000))
			}
			b.WriteString("\n")
		}

		doc, err := Parse(b.String())
		require.NoError(t, err)

		g := doc.Group(fmt.Sprintf("G%d", iter))
		require.NotNil(t, g)
		assert.Equal(t, rows, g.Rows())
		for _, col := range g.Columns {
			assert.Len(t, col.Data, rows)
		}
	}
}

func TestRead_StripsBOMAndDecodesLatin1(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(locaDoc)...)
	doc, err := Read(strings.NewReader(string(withBOM)))
	require.NoError(t, err)
	assert.NotNil(t, doc.Group("LOCA"))

	latin := strings.Replace(locaDoc, "BH1", "BH\xb0", 1)
	doc, err = Read(strings.NewReader(latin))
	require.NoError(t, err)
	assert.Equal(t, []string{"BH°"}, doc.Group("LOCA").Columns["LOCA_ID"].Data)
}
