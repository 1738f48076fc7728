package model

import "time"

// Item is either a found item held by staff or a lost report filed by a
// student. Reports have ReportedBy set.
type Item struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	Brand           string     `json:"brand,omitempty"`
	ModelNo         string     `json:"model_no,omitempty"`
	Colour          string     `json:"colour,omitempty"`
	Identifications string     `json:"identifications,omitempty"`
	Location        string     `json:"location,omitempty"`
	LostDate        string     `json:"lost_date,omitempty"`
	ImagePath       string     `json:"image_path,omitempty"`
	ReportedBy      string     `json:"reported_by,omitempty"`
	IsAdminItem     bool       `json:"is_admin_item"`
	Status          string     `json:"status"`
	ResalePrice     *float64   `json:"resale_price,omitempty"`
	ResaleDate      *time.Time `json:"resale_date,omitempty"`
	ClaimedBy       string     `json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Item statuses as stored. Claiming is recorded in ClaimedBy/ClaimedAt.
const (
	ItemStatusAvailable = "available"
	ItemStatusResale    = "resale"
)

// ItemState is the lifecycle state derived from an item's fields.
type ItemState string

// Lifecycle states.
const (
	StateAvailable ItemState = "available"
	StateClaimed   ItemState = "claimed"
	StateResale    ItemState = "resale"
)

// ItemKind tells found inventory apart from lost reports.
type ItemKind string

// Item kinds.
const (
	KindFound  ItemKind = "found"
	KindReport ItemKind = "report"
)

// State returns the item's lifecycle state. A claim takes precedence over
// resale, since an owner may still collect an item offered for sale.
func (i *Item) State() ItemState {
	switch {
	case i.ClaimedBy != "":
		return StateClaimed
	case i.Status == ItemStatusResale:
		return StateResale
	default:
		return StateAvailable
	}
}

// Kind returns whether the item is found inventory or a lost report.
func (i *Item) Kind() ItemKind {
	if i.ReportedBy != "" {
		return KindReport
	}
	return KindFound
}

// ItemAttrs are the descriptive attributes supplied when creating an item.
type ItemAttrs struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Brand           string `json:"brand"`
	ModelNo         string `json:"model_no"`
	Colour          string `json:"colour"`
	Identifications string `json:"identifications"`
	Location        string `json:"location"`
	LostDate        string `json:"lost_date"`
	ImagePath       string `json:"-"`
}

// ItemPatch is a partial update of descriptive fields. Nil fields are left
// unchanged.
type ItemPatch struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Category        *string `json:"category"`
	Brand           *string `json:"brand"`
	ModelNo         *string `json:"model_no"`
	Colour          *string `json:"colour"`
	Identifications *string `json:"identifications"`
	Location        *string `json:"location"`
	LostDate        *string `json:"lost_date"`
	ImagePath       *string `json:"-"`
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item Item) Item {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&item.Name, p.Name)
	set(&item.Description, p.Description)
	set(&item.Category, p.Category)
	set(&item.Brand, p.Brand)
	set(&item.ModelNo, p.ModelNo)
	set(&item.Colour, p.Colour)
	set(&item.Identifications, p.Identifications)
	set(&item.Location, p.Location)
	set(&item.LostDate, p.LostDate)
	set(&item.ImagePath, p.ImagePath)
	return item
}

// MatchQuery holds the lost-report attributes used to look for candidates.
type MatchQuery struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Colour   string `json:"colour"`
	Location string `json:"location"`
}

// QueryFrom extracts the matching attributes from item attributes.
func QueryFrom(a ItemAttrs) MatchQuery {
	return MatchQuery{
		Name:     a.Name,
		Category: a.Category,
		Brand:    a.Brand,
		Colour:   a.Colour,
		Location: a.Location,
	}
}

// Item list views.
const (
	ViewAll     = ""
	ViewFound   = "found"
	ViewReports = "reports"
	ViewResale  = "resale"
	ViewClaimed = "claimed"
)

// ItemFilter narrows an item listing.
type ItemFilter struct {
	View       string
	ReportedBy string
}
