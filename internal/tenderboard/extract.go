package tenderboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	scrapeerr "sjsage522/tenderscraper/pkg/errors"
)

// Selectors for the listing fragment returned by the page endpoint
const (
	HeaderSelector = "div.table-head"
	RowSelector    = "div.rows"
	ColumnSelector = "div.column"
	LabelAttr      = "data-label"
)

var (
	errMissingHeader = errors.New("fragment has no " + HeaderSelector)
	errMissingLabel  = errors.New("column has no " + LabelAttr + " attribute")
)

// ColumnRule extracts one column into rec. Returning an error fails the page.
type ColumnRule func(col *goquery.Selection, rec *Record) error

// RowObserver is notified while a page's rows are extracted
type RowObserver interface {
	PageStarted(page, rows int)
	RowExtracted(page int)
	PageFinished(page int, status PageStatus)
}

// NopObserver ignores all notifications
type NopObserver struct{}

func (NopObserver) PageStarted(int, int)         {}
func (NopObserver) RowExtracted(int)             {}
func (NopObserver) PageFinished(int, PageStatus) {}

// Extractor turns listing fragments into records. It holds no per-page
// state, so one Extractor can serve every worker.
type Extractor struct {
	BaseURL  string
	Rules    map[string]ColumnRule
	Fallback ColumnRule
	Observer RowObserver
}

// NewExtractor returns an extractor with the portal's column rules
func NewExtractor(baseURL string) *Extractor {
	e := &Extractor{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Fallback: ScalarColumn,
		Observer: NopObserver{},
	}
	e.Rules = map[string]ColumnRule{
		LabelIndex:     SkipColumn,
		LabelComposite: e.TenderSubjectColumn,
	}
	return e
}

// SkipColumn drops a presentational column
func SkipColumn(*goquery.Selection, *Record) error {
	return nil
}

// ScalarColumn keys the record by the uppercased label and stores the
// uppercased column text.
func ScalarColumn(col *goquery.Selection, rec *Record) error {
	label, _ := col.Attr(LabelAttr)
	rec.set(strings.ToUpper(label), strings.ToUpper(strings.TrimSpace(col.Text())))
	return nil
}

// TenderSubjectColumn splits the composite column into the tender link, the
// tender number held in the embedded span and the remaining subject text.
func (e *Extractor) TenderSubjectColumn(col *goquery.Selection, rec *Record) error {
	href, ok := col.Find("a").First().Attr("href")
	if !ok {
		return errors.New("composite column has no link")
	}
	marker := col.Find("span").First()
	if marker.Length() == 0 {
		return errors.New("composite column has no tender number")
	}

	number := marker.Text()
	subject := col.Text()
	if number != "" {
		subject = strings.ReplaceAll(subject, number, "")
	}

	rec.set(KeyTenderSubject, strings.ToUpper(strings.TrimSpace(subject)))
	rec.set(KeyTenderNumber, number)
	rec.set(KeyTenderLink, e.ResolveURL(href))
	return nil
}

// ResolveURL prefixes relative hrefs with the base URL
func (e *Extractor) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return e.BaseURL + href
}

// ExtractPage parses a listing fragment. It never panics: broken markup is
// reported as a PageFailed result.
func (e *Extractor) ExtractPage(page int, fragment string) (result PageResult) {
	observer := e.observer()
	defer func() {
		if r := recover(); r != nil {
			result = failedResult(page, scrapeerr.NewParsing(pageComponent(page), "extraction panicked", fmt.Errorf("%v", r)))
		}
		observer.PageFinished(page, result.Status)
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return failedResult(page, scrapeerr.NewParsing(pageComponent(page), "invalid markup", err))
	}

	if doc.Find(HeaderSelector).Length() == 0 {
		return failedResult(page, scrapeerr.NewParsing(pageComponent(page), "missing table header", errMissingHeader))
	}

	rows := doc.Find(RowSelector)
	observer.PageStarted(page, rows.Length())

	records := make([]Record, 0, rows.Length())
	for i := range rows.Nodes {
		rec, err := e.extractRow(rows.Eq(i))
		if err != nil {
			return failedResult(page, scrapeerr.NewParsing(pageComponent(page), fmt.Sprintf("row %d", i+1), err))
		}
		records = append(records, rec)
		observer.RowExtracted(page)
	}

	return okResult(page, records)
}

func (e *Extractor) extractRow(row *goquery.Selection) (Record, error) {
	var rec Record
	columns := row.Find(ColumnSelector)
	for i := range columns.Nodes {
		col := columns.Eq(i)
		label, ok := col.Attr(LabelAttr)
		if !ok {
			return Record{}, errMissingLabel
		}

		rule, found := e.Rules[label]
		if !found {
			rule = e.Fallback
		}
		if rule == nil {
			rule = ScalarColumn
		}
		if err := rule(col, &rec); err != nil {
			return Record{}, fmt.Errorf("column %q: %w", label, err)
		}
	}
	return rec, nil
}

func (e *Extractor) observer() RowObserver {
	if e.Observer == nil {
		return NopObserver{}
	}
	return e.Observer
}

func pageComponent(page int) string {
	return fmt.Sprintf("page %d", page)
}
