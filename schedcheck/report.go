package schedcheck

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Columns is the header of the CSV report.
var Columns = []string{"Ns", "Pm", "Sm", "Tm", "Dm", "Jm", "Cm", "Bm", "Im", "Wm", "Ym", "Qm", "Um", "Rm", "Nm", "Ng"}

// Verdict is the one-line summary printed for a human.
func (r *Report) Verdict() string {
	if r.Unschedulable > 0 {
		return fmt.Sprintf("UNSCHEDULABLE!: %d", r.Unschedulable)
	}
	return "Scheduleable"
}

// WriteCSV writes one line per message in priority order. Um is in percent,
// unbounded quantities are written as inf.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range r.Rows {
		ng := "ok"
		if row.Unschedulable {
			ng = "#####"
		}
		rec := []string{
			row.Name,
			fmt.Sprintf("0x%03X", row.P),
			num(row.S), num(row.T), num(row.D), num(row.J),
			num(row.C), num(row.B), num(row.I), num(row.W), num(row.Y), num(row.Q),
			strconv.FormatFloat(100*row.U, 'f', 2, 64),
			num(row.R), num(row.N),
			ng,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v int64) string {
	if v == Unbounded {
		return "inf"
	}
	return strconv.FormatInt(v, 10)
}
