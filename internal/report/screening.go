package report

import (
	"io"
	"strconv"

	"github.com/wonny/krxvalue/internal/contracts"
)

var screeningHeader = []string{
	"순위",
	"종목코드",
	"종목명",
	"시가총액(조)",
	"PER",
	"PBR",
	"DIV",
	"PER 기여",
	"PBR 기여",
	"DIV 기여",
	"TAT",
}

// WriteScreeningCSV writes the display rows of a screening result.
// A missing DIV is written as an empty cell.
func WriteScreeningCSV(w io.Writer, result *contracts.ScreeningResult) error {
	view := result.Display()

	rows := make([][]string, 0, len(view))
	for _, c := range view {
		div := ""
		if c.DIV != nil {
			div = formatFloat(*c.DIV)
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Rank),
			c.Ticker,
			c.Name,
			formatFloat(c.MarketCapTrillion),
			formatFloat(c.PER),
			formatFloat(c.PBR),
			div,
			formatFloat(c.PERContribution),
			formatFloat(c.PBRContribution),
			formatFloat(c.DIVContribution),
			formatFloat(c.TotalScore),
		})
	}

	return writeCSV(w, screeningHeader, rows)
}
