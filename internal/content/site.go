// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

// Site bundles the embedded data every page needs.
type Site struct {
	Store      *Store
	Menu       *Menu
	Promotions *Promotions
}

// LoadSite parses all embedded site data.
func LoadSite() (*Site, error) {
	store, err := LoadStore()
	if err != nil {
		return nil, err
	}
	menu, err := LoadMenu()
	if err != nil {
		return nil, err
	}
	promos, err := LoadPromotions()
	if err != nil {
		return nil, err
	}
	return &Site{Store: store, Menu: menu, Promotions: promos}, nil
}
