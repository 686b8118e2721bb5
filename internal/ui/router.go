package ui

import (
	"html/template"
	"slices"
)

// HelpTopic is static help content shown in the help panel.
type HelpTopic struct {
	Title string
	Body  template.HTML
}

// HelpCatalog maps topic keys to their content.
type HelpCatalog map[string]HelpTopic

// Router switches the visible top-level panel of a Document. It keeps no
// history; showing a panel hides every other one.
type Router struct {
	doc  *Document
	help HelpCatalog
}

func NewRouter(doc *Document, help HelpCatalog) *Router {
	if help == nil {
		help = HelpCatalog{}
	}
	return &Router{doc: doc, help: help}
}

// Show makes p the only visible panel. Unknown panels are ignored.
func (r *Router) Show(p Panel) bool {
	if !slices.Contains(Panels, p) {
		return false
	}
	r.doc.active = p
	return true
}

// OpenHelp shows the help panel with the content for topic. An unknown topic
// leaves the panel empty.
func (r *Router) OpenHelp(topic string) {
	r.Show(PanelHelp)
	r.doc.ScrollTo("top")
	content, ok := r.help[topic]
	if !ok {
		r.doc.ClearRegion(RegionHelpTitle)
		r.doc.ClearRegion(RegionHelpBody)
		return
	}
	r.doc.SetRegion(RegionHelpTitle, template.HTML(template.HTMLEscapeString(content.Title)))
	r.doc.SetRegion(RegionHelpBody, content.Body)
}

// DefaultHelp is the help content shipped with the storefront.
func DefaultHelp() HelpCatalog {
	return HelpCatalog{
		"order": {
			Title: "How to place an order",
			Body: `<ol class="help-steps">
<li>Open the <b>Catalog</b> and pick a book.</li>
<li>Press the cart button on its card.</li>
<li>Open the cart from the header and check the items.</li>
<li>Press <b>Checkout</b>.</li>
</ol>
<p class="help-note">A manager will contact you within 15 minutes.</p>`,
		},
		"delivery": {
			Title: "Delivery and payment",
			Body: `<h4>Courier</h4>
<p>Delivery within the city: <b>150</b>. Free for orders from 2000.</p>
<h4>Pickup</h4>
<p>Collect your order from our office. <b>Free.</b></p>
<h4>Payment</h4>
<ul><li>Card on the website</li><li>Cash to the courier</li><li>Mobile wallet</li></ul>`,
		},
		"return": {
			Title: "Returns",
			Body: `<p class="help-warning">Books can be returned only in case of a <b>manufacturing defect</b>.</p>
<p>If you find a defect (missing pages, upside-down print) we replace the book within 14 days.</p>
<p class="help-note">Keep the receipt and the book in its original condition.</p>`,
		},
		"bonus": {
			Title: "Bonus program",
			Body: `<p>Collect points: every purchase earns <b>5%</b> back in points.</p>
<p><a href="/login">Sign in to your account</a></p>`,
		},
		"offer": {
			Title: "Public offer",
			Body: `<p>This site is a demonstration project.</p>
<p>Any resemblance to real shops is coincidental.</p>`,
		},
	}
}
