package utils

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"msxfi/errmap"
	"msxfi/fault"
	"msxfi/techdata"
	"msxfi/tensor"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// PrintReport prints the summary of an injection and, for models, one row
// per parameter.
func PrintReport(w io.Writer, rep fault.Report) {
	fmt.Fprintf(w, "run %s: %s, %s, cells %v, %s encoding, seed %d\n",
		rep.RunID, rep.Technology, rep.Format, rep.Cells, rep.Encoding, rep.Seed)
	if rep.DRAM != nil {
		d := rep.DRAM
		fmt.Fprintf(w, "dram: %dnm @ %dK, vdd %gV, ioff %.3e A (sigma %.3e), icrit %.3e A, p(flip) %.6g\n",
			d.FeatureSize, d.Temperature, d.Vdd, d.Leakage, d.LeakageSigma, d.CriticalCurrent, d.FlipProbability)
	}

	if len(rep.Parameters) > 0 {
		table := newTable(w, "PARAMETER", "SHAPE", "FAULTS", "AFFECTED", "RATE")
		var data [][]string
		for _, p := range rep.Parameters {
			data = append(data, []string{
				p.Name,
				fmt.Sprint(p.Shape),
				strconv.Itoa(p.Stats.Faults),
				fmt.Sprintf("%d/%d", p.Stats.Affected, p.Stats.Total),
				fmt.Sprintf("%.4f%%", 100*p.Stats.FaultRate()),
			})
		}
		table.AppendBulk(data)
		table.Render()
	}
	fmt.Fprintf(w, "total: %s, %d encoded bits\n", rep.Stats, rep.EncodedBits)
}

// PrintErrorMap prints the down/up shift probabilities of every level for
// each cell width of m.
func PrintErrorMap(w io.Writer, m *errmap.NVM) error {
	for levels := 2; levels <= m.MaxLevels(); levels *= 2 {
		d, err := m.Matrix(levels)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s, %d levels\n", m.Technology, levels)
		table := newTable(w, "LEVEL", "DOWN", "UP")
		var data [][]string
		for j := 0; j < levels; j++ {
			data = append(data, []string{
				strconv.Itoa(j),
				fmt.Sprintf("%.6e", d.At(j, errmap.Down)),
				fmt.Sprintf("%.6e", d.At(j, errmap.Up)),
			})
		}
		table.AppendBulk(data)
		table.Render()
	}
	return nil
}

// PrintTechnologies lists the technologies of a store.
func PrintTechnologies(w io.Writer, s *techdata.Store) {
	table := newTable(w, "TECHNOLOGY", "CLASS", "DETAIL")
	var data [][]string
	for _, tag := range s.Technologies() {
		class, _ := s.Class(tag)
		var detail string
		switch class {
		case techdata.NVM:
			t := s.NVM[tag]
			detail = fmt.Sprintf("%s, up to %d levels", t.Family, 1<<t.MaxBits())
		case techdata.DRAM:
			detail = fmt.Sprintf("nodes %v nm", s.DRAM[tag].FeatureSizes())
		}
		data = append(data, []string{tag, class.String(), detail})
	}
	table.AppendBulk(data)
	table.Render()
}

// PrintSample prints the top-left rows x cols corner of a 2-D tensor.
func PrintSample(w io.Writer, title string, t *tensor.Tensor, rows, cols int) {
	fmt.Fprintln(w, title)
	r, c := 1, len(t.Data)
	if len(t.Shape) == 2 {
		r, c = t.Shape[0], t.Shape[1]
	}
	for i := 0; i < min(rows, r); i++ {
		for j := 0; j < min(cols, c); j++ {
			fmt.Fprintf(w, "%11.6f", t.Data[i*c+j])
		}
		fmt.Fprintln(w)
	}
}
