package item

import "encoding/xml"

// Item is the unit record emitted by a Source.
type Item struct {
	XMLName xml.Name `json:"-" xml:"item"`
	ID      string   `json:"id" xml:"id"`
	Name    string   `json:"name" xml:"name"`
}

// List is the XML envelope for a full sequence. JSON callers encode the
// slice directly.
type List struct {
	XMLName xml.Name `xml:"items"`
	Items   []Item   `xml:"item"`
}
