package tenderboard

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinistrySelector locates the ministry filter on the landing page
const MinistrySelector = "select#cphBaseBody_CphInnerBody_ddlMinistry"

// allMinistries is the option value meaning no ministry is selected
const allMinistries = "0"

var errNoMinistrySelect = errors.New("landing page has no ministry selector")

// ParseMinistries reads the ministry options from the landing page markup
func ParseMinistries(r io.Reader) ([]Ministry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	sel := doc.Find(MinistrySelector).First()
	if sel.Length() == 0 {
		return nil, errNoMinistrySelect
	}

	var ministries []Ministry
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		if value == allMinistries {
			return
		}
		ministries = append(ministries, Ministry{
			Name:  strings.TrimSpace(opt.Text()),
			Value: value,
		})
	})
	return ministries, nil
}
