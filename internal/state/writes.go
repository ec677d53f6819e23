package state

import (
	"context"
	"log/slog"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/identity"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
)

// SaveProject inserts p when it has no id and updates it otherwise. It
// returns the document id.
func (c *Container) SaveProject(ctx context.Context, p core.Project) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return c.save(ctx, CollectionProjects, p.ID, projectFields(p), false)
}

func (c *Container) SaveVendor(ctx context.Context, v core.Vendor) (string, error) {
	if v.Type == "" {
		v.Type = core.DefaultVendorType()
	}
	if err := v.Validate(); err != nil {
		return "", err
	}
	return c.save(ctx, CollectionVendors, v.ID, vendorFields(v), false)
}

// SavePayment writes the full editable field set of p.
func (c *Container) SavePayment(ctx context.Context, p core.Payment) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return c.save(ctx, CollectionPayments, p.ID, PaymentFields(p), true)
}

func (c *Container) DeleteProject(ctx context.Context, id string) error {
	return c.remove(ctx, CollectionProjects, id)
}

func (c *Container) DeleteVendor(ctx context.Context, id string) error {
	return c.remove(ctx, CollectionVendors, id)
}

func (c *Container) DeletePayment(ctx context.Context, id string) error {
	return c.remove(ctx, CollectionPayments, id)
}

func (c *Container) save(ctx context.Context, name, id string, fields docstore.Fields, stampUpdated bool) (string, error) {
	if id == "" {
		return c.write(ctx, log.OpCreate, name, "", func(ctx context.Context, path string) (string, error) {
			return c.store.Insert(ctx, path, withCreateStamps(fields, stampUpdated))
		})
	}
	return c.write(ctx, log.OpUpdate, name, id, func(ctx context.Context, path string) (string, error) {
		return id, c.store.Update(ctx, path, id, withUpdateStamp(fields))
	})
}

func (c *Container) remove(ctx context.Context, name, id string) error {
	_, err := c.write(ctx, log.OpDelete, name, id, func(ctx context.Context, path string) (string, error) {
		return id, c.store.Delete(ctx, path, id)
	})
	return err
}

func (c *Container) write(ctx context.Context, op, name, id string, fn func(ctx context.Context, path string) (string, error)) (string, error) {
	s := c.Session()
	if s == nil {
		c.metrics.Write(name, op, metrics.ResultNoSession)
		c.logger.DebugContext(ctx, "Write skipped without session",
			log.NewFields().WithOperation(op).WithDocument(name, id).ToSlice()...)
		return "", ErrNoSession
	}

	newID, err := fn(identity.WithSession(ctx, s), docstore.Path(c.appID, name))
	if err != nil {
		c.metrics.Write(name, op, metrics.ResultError)
		c.logger.Fields(ctx, slog.LevelError, "Write failed",
			log.NewFields().WithOperation(op).WithDocument(name, id).WithError(err))
		return "", &WriteError{Op: op, Collection: name, ID: id, Err: err}
	}

	c.metrics.Write(name, op, metrics.ResultOK)
	c.logger.Fields(ctx, slog.LevelInfo, "Write committed",
		log.NewFields().WithOperation(op).WithDocument(name, newID))
	return newID, nil
}
