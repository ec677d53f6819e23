package backend

import (
	"context"
	"fmt"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/identity"
	"sitepay/internal/state"
)

func projectsPath(appID string) string {
	return docstore.Path(appID, state.CollectionProjects)
}

type seedPayment struct {
	project, vendor int
	item            string
	amount          float64
	expectedDate    string
	status          core.Status
}

var (
	seedProjects = []string{"Riverside Apartments", "North Depot Renovation"}
	seedVendors  = []struct {
		name string
		typ  core.VendorType
	}{
		{"Kato Construction", core.VendorGeneral},
		{"Bright Line Electric", core.VendorElectrical},
		{"Aqua Plumbing Works", core.VendorPlumbing},
	}
	seedPayments = []seedPayment{
		{0, 0, "Foundation work", 1200000, "2024-07-31", core.StatusConfirmed},
		{0, 1, "Wiring, floors 1-3", 450000, "2024-08-15", core.StatusIssue},
		{1, 2, "Drainage replacement", 380000, "2024-06-30", core.StatusPaid},
		{1, 0, "Site preparation", 220000, "", core.StatusDraft},
	}
)

// Seed writes demo data when empty reports an empty store. It uses its own
// session so it can run before any user signs in.
func Seed(ctx context.Context, store docstore.Store, appID string, empty func() (bool, error)) error {
	ok, err := empty()
	if err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if !ok {
		return nil
	}
	ctx = identity.WithSession(ctx, &identity.Session{ID: "seed"})

	projectIDs := make([]string, len(seedProjects))
	for i, name := range seedProjects {
		id, err := store.Insert(ctx, projectsPath(appID), docstore.Fields{
			state.FieldName:      name,
			state.FieldCreatedAt: docstore.ServerTimestamp,
		})
		if err != nil {
			return fmt.Errorf("seed project %q: %w", name, err)
		}
		projectIDs[i] = id
	}

	vendorIDs := make([]string, len(seedVendors))
	for i, v := range seedVendors {
		id, err := store.Insert(ctx, docstore.Path(appID, state.CollectionVendors), docstore.Fields{
			state.FieldName:      v.name,
			state.FieldType:      string(v.typ),
			state.FieldCreatedAt: docstore.ServerTimestamp,
		})
		if err != nil {
			return fmt.Errorf("seed vendor %q: %w", v.name, err)
		}
		vendorIDs[i] = id
	}

	for _, sp := range seedPayments {
		fields := state.PaymentFields(core.Payment{
			ProjectID:    projectIDs[sp.project],
			ProjectName:  seedProjects[sp.project],
			VendorID:     vendorIDs[sp.vendor],
			VendorName:   seedVendors[sp.vendor].name,
			Item:         sp.item,
			Amount:       sp.amount,
			ExpectedDate: sp.expectedDate,
			Status:       sp.status,
		})
		fields[state.FieldCreatedAt] = docstore.ServerTimestamp
		fields[state.FieldUpdatedAt] = docstore.ServerTimestamp
		if _, err := store.Insert(ctx, docstore.Path(appID, state.CollectionPayments), fields); err != nil {
			return fmt.Errorf("seed payment %q: %w", sp.item, err)
		}
	}
	return nil
}
