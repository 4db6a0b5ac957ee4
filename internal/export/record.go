package export

import (
	"encoding/xml"
	"strconv"
)

// PriceOnRequest is the sentinel emitted when a listing has no price and
// the portal asked for undisclosed prices. It is distinct from a numeric
// zero: zero is a legitimate catalog value (condo fee exemption, IPTU)
// and must never read as "missing".
const PriceOnRequest = "price_on_request"

// Record is the normalized export shape sent to portals, both in feeds
// and as the base of push-adapter payloads.
type Record struct {
	XMLName      xml.Name `json:"-" xml:"listing"`
	ListingID    int64    `json:"listing_id" xml:"id"`
	Title        string   `json:"title" xml:"title"`
	Description  string   `json:"description" xml:"description"`
	Transaction  string   `json:"transaction_type" xml:"transactionType"`
	PropertyType string   `json:"property_type" xml:"propertyType"`
	Price        string   `json:"price" xml:"price"`
	CondoFee     string   `json:"condo_fee" xml:"condoFee"`
	IPTU         string   `json:"iptu" xml:"iptu"`
	Street       string   `json:"street" xml:"address>street"`
	StreetNumber string   `json:"street_number" xml:"address>streetNumber"`
	District     string   `json:"district" xml:"address>district"`
	City         string   `json:"city" xml:"address>city"`
	State        string   `json:"state" xml:"address>state"`
	PostalCode   string   `json:"postal_code" xml:"address>postalCode"`
	Geohash      string   `json:"geohash,omitempty" xml:"address>geohash,omitempty"`
	Bedrooms     int      `json:"bedrooms" xml:"bedrooms"`
	Bathrooms    int      `json:"bathrooms" xml:"bathrooms"`
	Garages      int      `json:"garages" xml:"garages"`
	Area         float64  `json:"area" xml:"area"`
	Featured     bool     `json:"featured" xml:"featured"`
	Photos       []string `json:"photos" xml:"photos>photo"`
}

// CSVHeader is the stable column order of the CSV feed. Changing it
// breaks consumers; append only.
var CSVHeader = []string{
	"listing_id", "title", "description", "transaction_type",
	"property_type", "price", "condo_fee", "iptu",
	"street", "street_number", "district", "city", "state", "postal_code",
	"geohash", "bedrooms", "bathrooms", "garages", "area",
	"featured", "photos",
}

// CSVRow renders the record in CSVHeader order. Photos are joined with
// a pipe because the URL set is a single cell.
func (r *Record) CSVRow() []string {
	photos := ""
	for i, p := range r.Photos {
		if i > 0 {
			photos += "|"
		}
		photos += p
	}
	return []string{
		strconv.FormatInt(r.ListingID, 10),
		r.Title,
		r.Description,
		r.Transaction,
		r.PropertyType,
		r.Price,
		r.CondoFee,
		r.IPTU,
		r.Street,
		r.StreetNumber,
		r.District,
		r.City,
		r.State,
		r.PostalCode,
		r.Geohash,
		strconv.Itoa(r.Bedrooms),
		strconv.Itoa(r.Bathrooms),
		strconv.Itoa(r.Garages),
		strconv.FormatFloat(r.Area, 'f', 2, 64),
		strconv.FormatBool(r.Featured),
		photos,
	}
}
