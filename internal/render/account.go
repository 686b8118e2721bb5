package render

import (
	"html/template"

	"bookstore-web/internal/core/model"
)

// Cart renders the cart table and returns the total separately for the
// summary box.
func (r *Renderer) Cart(c model.Cart) (table template.HTML, total template.HTML, err error) {
	total = template.HTML(template.HTMLEscapeString(formatMoney(c.Total(), r.opts.Currency)))
	if len(c.Lines) == 0 {
		return r.Message(MsgCartEmpty, ""), total, nil
	}
	table, err = r.fragment("cart", c)
	if err != nil {
		return "", "", err
	}
	return table, total, nil
}

func (r *Renderer) Orders(orders []model.Order) (template.HTML, error) {
	if len(orders) == 0 {
		return r.Message(MsgOrdersEmpty, ""), nil
	}
	return r.fragment("orders", orders)
}

// Profile renders the profile form. notice is an inline status line.
func (r *Renderer) Profile(u *model.User, notice string) (template.HTML, error) {
	return r.fragment("profile", struct {
		User   *model.User
		Notice string
	}{u, notice})
}
