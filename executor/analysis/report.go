package analysis

import (
	"fmt"
	"io"
)

// WriteReport prints the four corpus means, one per line.
func WriteReport(w io.Writer, s CorpusStats) error {
	_, err := fmt.Fprintf(w,
		"Typical symmetry value difference (scale of 0-2):  %.3f\n"+
			"Typical 90th percentile symmetry value difference: %.3f\n"+
			"Typical worst symmetry value difference:           %.3f\n"+
			"Typical standard deviation over all eight values:  %.3f\n",
		s.MeanMedian, s.MeanP90, s.MeanWorst, s.MeanStdDev)
	return err
}
