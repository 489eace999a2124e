package classify

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matsen/citeq/internal/storage"
)

// Annotation is a hand label: the label index of a citation.
type Annotation struct {
	CitationID int64
	Label      int
}

// Prediction pairs a hand label with the classifier's label, both as
// indexes into the label set.
type Prediction struct {
	CitationID int64 `json:"citation_id"`
	Want       int   `json:"want"`
	Got        int   `json:"got"`
}

// ClassScore is the precision and recall of one label.
type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// Evaluation is the outcome of scoring predictions.
type Evaluation struct {
	Classes     []ClassScore `json:"classes"`
	Accuracy    float64      `json:"accuracy"`
	Total       int          `json:"total"`
	Predictions []Prediction `json:"predictions,omitempty"`
}

// ReadAnnotations reads "citation_id,label_index" rows. A non-numeric first
// row is taken as a header.
func ReadAnnotations(r io.Reader, labels LabelSet) ([]Annotation, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	out := make([]Annotation, 0, len(rows))
	for _, row := range rows {
		label, err := strconv.Atoi(row.value)
		if err != nil || label < 0 || label >= len(labels.Labels) {
			return nil, fmt.Errorf("line %d: label %q is not an index in [0,%d)", row.line, row.value, len(labels.Labels))
		}
		out = append(out, Annotation{CitationID: row.id, Label: label})
	}
	return out, nil
}

// Evaluate classifies each annotated citation's context and scores the
// result. Annotated citations missing from the store are an error.
func Evaluate(ctx context.Context, db *storage.DB, clf Classifier, labels LabelSet, annotations []Annotation) (*Evaluation, error) {
	preds := make([]Prediction, 0, len(annotations))
	for _, a := range annotations {
		c, err := db.GetCitation(ctx, a.CitationID)
		if err != nil {
			return nil, err
		}
		label, err := clf.Classify(ctx, c.Context)
		if err != nil {
			return nil, fmt.Errorf("classifying citation %d: %w", a.CitationID, err)
		}
		preds = append(preds, Prediction{CitationID: a.CitationID, Want: a.Label, Got: labels.Index(label)})
	}

	eval := Score(labels, preds)
	eval.Predictions = preds
	return &eval, nil
}

// Score computes per-label precision and recall. A label never predicted
// has precision 0; a label never annotated has recall 0.
func Score(labels LabelSet, preds []Prediction) Evaluation {
	n := len(labels.Labels)
	tp := make([]int, n)
	fp := make([]int, n)
	fn := make([]int, n)
	correct := 0

	for _, p := range preds {
		if p.Want == p.Got {
			tp[p.Want]++
			correct++
			continue
		}
		if p.Got >= 0 && p.Got < n {
			fp[p.Got]++
		}
		fn[p.Want]++
	}

	eval := Evaluation{Total: len(preds)}
	if len(preds) > 0 {
		eval.Accuracy = float64(correct) / float64(len(preds))
	}
	for i, l := range labels.Labels {
		eval.Classes = append(eval.Classes, ClassScore{
			Label:     l.Name,
			Precision: ratio(tp[i], tp[i]+fp[i]),
			Recall:    ratio(tp[i], tp[i]+fn[i]),
			Support:   tp[i] + fn[i],
		})
	}
	return eval
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// LabelRow is a label produced outside citeq for one citation.
type LabelRow struct {
	CitationID int64
	Label      string
}

// ReadLabels reads "citation_id,label" rows. The label may be a name or an
// index into labels.
func ReadLabels(r io.Reader, labels LabelSet) ([]LabelRow, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	out := make([]LabelRow, 0, len(rows))
	for _, row := range rows {
		name, err := labels.Resolve(row.value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		out = append(out, LabelRow{CitationID: row.id, Label: name})
	}
	return out, nil
}

// ImportReport counts the outcome of a label import.
type ImportReport struct {
	Imported int     `json:"imported"`
	Missing  []int64 `json:"missing,omitempty"`
}

// ImportLabels writes rows into the kind column. Rows naming a citation
// that is not in the store are reported and skipped.
func ImportLabels(ctx context.Context, db *storage.DB, kind Kind, rows []LabelRow) (*ImportReport, error) {
	report := &ImportReport{}
	for _, row := range rows {
		var err error
		if kind == KindPurpose {
			err = db.SetPurpose(ctx, row.CitationID, row.Label)
		} else {
			err = db.SetSentiment(ctx, row.CitationID, row.Label)
		}
		switch {
		case errors.Is(err, storage.ErrNotFound):
			report.Missing = append(report.Missing, row.CitationID)
		case err != nil:
			return report, err
		default:
			report.Imported++
		}
	}
	return report, nil
}

type csvRow struct {
	line  int
	id    int64
	value string
}

// readRows reads two-column "id,value" CSV.
func readRows(r io.Reader) ([]csvRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []csvRow
	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want citation_id,label", line)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if first {
				continue
			}
			return nil, fmt.Errorf("line %d: bad citation id %q", line, rec[0])
		}
		out = append(out, csvRow{line: line, id: id, value: strings.TrimSpace(rec[1])})
	}
}
