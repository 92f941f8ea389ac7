package domain

import "time"

// The cellar domain is single-tenant: there is one cellar, not many
// accounts. GetAccountID satisfies pkg/storage.Entity (grounded on a
// multi-tenant SaaS convention) by returning the empty string uniformly,
// so the generic CRUD/pagination helpers in pkg/storage remain usable
// without a meaningless tenant column.

func (w *Wine) GetID() string                { return w.ID }
func (w *Wine) GetAccountID() string         { return "" }
func (w *Wine) SetCreatedAt(t time.Time)     { w.CreatedAt = t }
func (w *Wine) SetUpdatedAt(t time.Time)     { w.UpdatedAt = t }

func (v *Vintage) GetID() string            { return v.ID }
func (v *Vintage) GetAccountID() string     { return "" }
func (v *Vintage) SetCreatedAt(t time.Time) { v.CreatedAt = t }
func (v *Vintage) SetUpdatedAt(t time.Time) { v.UpdatedAt = t }

func (s *Stock) GetID() string            { return s.ID }
func (s *Stock) GetAccountID() string     { return "" }
func (s *Stock) SetCreatedAt(t time.Time) { s.CreatedAt = t }
func (s *Stock) SetUpdatedAt(t time.Time) { s.UpdatedAt = t }

func (s *Supplier) GetID() string            { return s.ID }
func (s *Supplier) GetAccountID() string     { return "" }
func (s *Supplier) SetCreatedAt(t time.Time) { s.CreatedAt = t }
func (s *Supplier) SetUpdatedAt(t time.Time) { s.UpdatedAt = t }

func (e *Experiment) GetID() string            { return e.ID }
func (e *Experiment) GetAccountID() string     { return "" }
func (e *Experiment) SetCreatedAt(t time.Time) { e.CreatedAt = t }
func (e *Experiment) SetUpdatedAt(t time.Time) { e.UpdatedAt = t }
