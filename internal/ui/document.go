package ui

import (
	"html/template"
	"slices"
)

type Panel string

const (
	PanelCatalog Panel = "catalog"
	PanelCart    Panel = "cart"
	PanelOrders  Panel = "orders"
	PanelProfile Panel = "profile"
	PanelHelp    Panel = "help"
)

// Panels lists every top-level panel; exactly one is visible at a time.
var Panels = []Panel{PanelCatalog, PanelCart, PanelOrders, PanelProfile, PanelHelp}

type Overlay string

const (
	OverlayNone     Overlay = ""
	OverlayLogin    Overlay = "login"
	OverlayRegister Overlay = "register"
)

// Region is a named, independently replaced part of the page.
type Region string

const (
	RegionSidebar    Region = "sidebar"
	RegionPagination Region = "pagination"
	RegionCart       Region = "cart"
	RegionCartTotal  Region = "cart_total"
	RegionOrders     Region = "orders"
	RegionProfile    Region = "profile"
	RegionHelpTitle  Region = "help_title"
	RegionHelpBody   Region = "help_body"
	RegionDetail     Region = "detail"
)

// Card is one book tile in the catalog grid.
type Card struct {
	BookID int64
	HTML   template.HTML
	Fading bool
}

// NoticeKind classifies an inline message.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
	NoticeLogin NoticeKind = "login" // asks the visitor to sign in
)

type Notice struct {
	Kind NoticeKind
	Text string
}

// Document is the rendered state of one visitor's page. It is not safe for
// concurrent use.
type Document struct {
	active         Panel
	regions        map[Region]template.HTML
	cards          []Card
	gridMessage    template.HTML // replaces the cards: spinner, empty state, error
	overlay        Overlay
	overlayMessage Notice
	cartCount      int
	detailOpen     bool
	notice         *Notice
	scrollTo       string
}

func NewDocument() *Document {
	return &Document{
		active:  PanelCatalog,
		regions: make(map[Region]template.HTML),
	}
}

func (d *Document) Active() Panel { return d.active }

func (d *Document) IsVisible(p Panel) bool { return d.active == p }

func (d *Document) Region(r Region) template.HTML { return d.regions[r] }

func (d *Document) SetRegion(r Region, html template.HTML) {
	d.regions[r] = html
}

func (d *Document) ClearRegion(r Region) {
	delete(d.regions, r)
}

// SetCards replaces the grid content and clears any grid message.
func (d *Document) SetCards(cards []Card) {
	d.cards = slices.Clone(cards)
	d.gridMessage = ""
}

// SetGridMessage replaces the whole grid with a single message.
func (d *Document) SetGridMessage(html template.HTML) {
	d.cards = nil
	d.gridMessage = html
}

func (d *Document) GridMessage() template.HTML { return d.gridMessage }

func (d *Document) Cards() []Card { return slices.Clone(d.cards) }

func (d *Document) CardCount() int { return len(d.cards) }

func (d *Document) HasCard(bookID int64) bool {
	return d.cardIndex(bookID) >= 0
}

// ReplaceCard swaps the markup of one card in place. It reports false when the
// card is not on the page.
func (d *Document) ReplaceCard(bookID int64, html template.HTML) bool {
	i := d.cardIndex(bookID)
	if i < 0 {
		return false
	}
	d.cards[i].HTML = html
	return true
}

// FadeCard starts the fade-out of a card before its removal.
func (d *Document) FadeCard(bookID int64) bool {
	i := d.cardIndex(bookID)
	if i < 0 {
		return false
	}
	d.cards[i].Fading = true
	return true
}

func (d *Document) RemoveCard(bookID int64) bool {
	i := d.cardIndex(bookID)
	if i < 0 {
		return false
	}
	d.cards = slices.Delete(d.cards, i, i+1)
	return true
}

func (d *Document) cardIndex(bookID int64) int {
	return slices.IndexFunc(d.cards, func(c Card) bool { return c.BookID == bookID })
}

func (d *Document) OpenOverlay(o Overlay) {
	d.overlay = o
	d.overlayMessage = Notice{}
}

// SetOverlayMessage shows text inside the currently open overlay.
func (d *Document) SetOverlayMessage(n Notice) {
	d.overlayMessage = n
}

func (d *Document) CloseOverlays() {
	d.overlay = OverlayNone
	d.overlayMessage = Notice{}
}

func (d *Document) Overlay() Overlay { return d.overlay }

func (d *Document) OverlayMessage() Notice { return d.overlayMessage }

func (d *Document) SetCartCount(n int) { d.cartCount = n }

func (d *Document) CartCount() int { return d.cartCount }

func (d *Document) OpenDetail(html template.HTML) {
	d.regions[RegionDetail] = html
	d.detailOpen = true
}

func (d *Document) CloseDetail() {
	delete(d.regions, RegionDetail)
	d.detailOpen = false
}

func (d *Document) DetailOpen() bool { return d.detailOpen }

// Notify shows a page-level message on the next snapshot.
func (d *Document) Notify(kind NoticeKind, text string) {
	d.notice = &Notice{Kind: kind, Text: text}
}

// ScrollTo records the element the page should scroll to on next display.
func (d *Document) ScrollTo(anchor string) { d.scrollTo = anchor }

func (d *Document) ScrollTarget() string { return d.scrollTo }

// View is an immutable copy of a Document, safe to render after the owning
// lock is released.
type View struct {
	Active         Panel
	Regions        map[Region]template.HTML
	Cards          []Card
	GridMessage    template.HTML
	Overlay        Overlay
	OverlayMessage Notice
	CartCount      int
	DetailOpen     bool
	Notice         *Notice
	ScrollTo       string
}

func (v View) Region(r string) template.HTML { return v.Regions[Region(r)] }

func (v View) Visible(p string) bool { return v.Active == Panel(p) }

// Snapshot copies the document. Reading it consumes the one-shot scroll target
// and page notice.
func (d *Document) Snapshot() View {
	regions := make(map[Region]template.HTML, len(d.regions))
	for k, v := range d.regions {
		regions[k] = v
	}
	v := View{
		Active:         d.active,
		Regions:        regions,
		Cards:          slices.Clone(d.cards),
		GridMessage:    d.gridMessage,
		Overlay:        d.overlay,
		OverlayMessage: d.overlayMessage,
		CartCount:      d.cartCount,
		DetailOpen:     d.detailOpen,
		ScrollTo:       d.scrollTo,
	}
	if d.notice != nil {
		n := *d.notice
		v.Notice = &n
	}
	d.scrollTo = ""
	d.notice = nil
	return v
}
