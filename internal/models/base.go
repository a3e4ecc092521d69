package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID gives a new row a client-side UUID so inserts stay portable across
// dialects and the id is known before the row is written.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

func (c *EmailCredential) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	assignID(&j.ID)
	return nil
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

func (d *DispatchLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}

func (i *InboundLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
