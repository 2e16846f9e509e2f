package purchase

import (
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// Aggregate builds one CalculatedPurchase per product and groups them by the
// owning business. Each product consumes the next unused item with the same
// id, so a product may appear several times with different options.
//
// The result is all-or-nothing: any unmatched product or unsupported item
// aborts the aggregation and no groups are returned.
func Aggregate(products []product.Product, items []Item) (*Groups, error) {
	pending := make(map[string][]Item, len(items))
	for _, item := range items {
		pending[item.ID] = append(pending[item.ID], item)
	}

	groups := newGroups()
	for _, p := range products {
		queue := pending[p.ID]
		if len(queue) == 0 {
			return nil, &UnmatchedPurchaseError{ProductID: p.ID}
		}
		item := queue[0]
		pending[p.ID] = queue[1:]

		calculated, err := calculate(p, item)
		if err != nil {
			return nil, err
		}
		groups.add(p.Business.ID, calculated)
	}

	return groups, nil
}

func calculate(p product.Product, item Item) (CalculatedPurchase, error) {
	images := make([]string, len(p.Images))
	copy(images, p.Images)

	out := CalculatedPurchase{
		ID:               p.ID,
		Name:             p.Name,
		Price:            p.Price,
		DiscountPrice:    p.DiscountPrice(),
		Discount:         p.Discount,
		Category:         p.Category,
		Images:           images,
		BusinessActivity: p.Business.Activity,
	}

	if !item.Category.Known() {
		return CalculatedPurchase{}, &UnsupportedCategoryError{ID: item.ID, Category: item.Category}
	}
	if item.Options != nil && item.Options.category() != item.Category {
		return CalculatedPurchase{}, &InvalidOptionsError{ID: item.ID, Category: item.Category}
	}

	switch item.Category {
	case CategoryClothes:
		opts, ok := item.Options.(ClothesOptions)
		if !ok {
			return CalculatedPurchase{}, &InvalidOptionsError{ID: item.ID, Category: item.Category}
		}
		out.Size = opts.Size.Label()
	case CategorySweets:
	default:
		return CalculatedPurchase{}, &UnsupportedCategoryError{ID: item.ID, Category: item.Category}
	}

	return out, nil
}
