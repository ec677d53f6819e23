package state

import (
	"sitepay/internal/core"
	"sitepay/internal/docstore"
)

// Collection names under apps/{appID}/.
const (
	CollectionProjects = "projects"
	CollectionVendors  = "vendors"
	CollectionPayments = "payments"
)

// Document field names.
const (
	FieldName         = "name"
	FieldType         = "type"
	FieldProjectID    = "projectId"
	FieldProjectName  = "projectName"
	FieldVendorID     = "vendorId"
	FieldVendorName   = "vendorName"
	FieldItem         = "item"
	FieldAmount       = "amount"
	FieldExpectedDate = "expectedDate"
	FieldStatus       = "status"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
)

var (
	projectsQuery = docstore.Query{OrderBy: FieldCreatedAt, Direction: docstore.Desc}
	vendorsQuery  = docstore.Query{OrderBy: FieldCreatedAt, Direction: docstore.Desc}
	paymentsQuery = docstore.Query{OrderBy: FieldExpectedDate, Direction: docstore.Desc}
)

func projectFromDocument(d docstore.Document) core.Project {
	return core.Project{
		ID:        d.ID,
		Name:      d.Fields.String(FieldName),
		CreatedAt: d.Fields.Time(FieldCreatedAt),
	}
}

func vendorFromDocument(d docstore.Document) core.Vendor {
	return core.Vendor{
		ID:        d.ID,
		Name:      d.Fields.String(FieldName),
		Type:      core.ParseVendorType(d.Fields.String(FieldType)),
		CreatedAt: d.Fields.Time(FieldCreatedAt),
	}
}

// paymentFromDocument never fails: a missing or malformed amount reads as 0
// and an unknown status is kept so the registry can render it as Unknown.
func paymentFromDocument(d docstore.Document) core.Payment {
	return core.Payment{
		ID:           d.ID,
		ProjectID:    d.Fields.String(FieldProjectID),
		ProjectName:  d.Fields.String(FieldProjectName),
		VendorID:     d.Fields.String(FieldVendorID),
		VendorName:   d.Fields.String(FieldVendorName),
		Item:         d.Fields.String(FieldItem),
		Amount:       core.CoerceAmount(d.Fields[FieldAmount]),
		ExpectedDate: d.Fields.String(FieldExpectedDate),
		Status:       core.Status(d.Fields.String(FieldStatus)),
		CreatedAt:    d.Fields.Time(FieldCreatedAt),
		UpdatedAt:    d.Fields.Time(FieldUpdatedAt),
	}
}

func projectFields(p core.Project) docstore.Fields {
	return docstore.Fields{FieldName: p.Name}
}

func vendorFields(v core.Vendor) docstore.Fields {
	return docstore.Fields{FieldName: v.Name, FieldType: string(v.Type)}
}

// PaymentFields is the full editable field set of a payment. Updates send all
// of it, so fields the user did not touch keep their values.
func PaymentFields(p core.Payment) docstore.Fields {
	return docstore.Fields{
		FieldProjectID:    p.ProjectID,
		FieldProjectName:  p.ProjectName,
		FieldVendorID:     p.VendorID,
		FieldVendorName:   p.VendorName,
		FieldItem:         p.Item,
		FieldAmount:       p.Amount,
		FieldExpectedDate: p.ExpectedDate,
		FieldStatus:       string(p.Status),
	}
}

func withCreateStamps(f docstore.Fields, updated bool) docstore.Fields {
	f[FieldCreatedAt] = docstore.ServerTimestamp
	if updated {
		f[FieldUpdatedAt] = docstore.ServerTimestamp
	}
	return f
}

func withUpdateStamp(f docstore.Fields) docstore.Fields {
	f[FieldUpdatedAt] = docstore.ServerTimestamp
	return f
}
