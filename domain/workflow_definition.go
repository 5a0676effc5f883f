package domain

import (
	"time"

	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
)

const (
	DefinitionTypeStatechartJSON = "statechart-json"
	DefaultDefinitionVersion     = 1
)

// WorkflowDefinition is an immutable state-chart template, new versions are new rows.
type WorkflowDefinition struct {
	ID             types.ID         `json:"id"`
	Name           string           `json:"name" gorm:"unique_index:uni_definition_name_version"`
	Version        int              `json:"version" gorm:"unique_index:uni_definition_name_version"`
	DefinitionType string           `json:"definitionType"`
	Definition     jsondoc.Document `json:"definition" sql:"type:TEXT"`
	Config         jsondoc.Document `json:"config" sql:"type:TEXT"`
	Extensions     jsondoc.Raw      `json:"extensions" sql:"type:TEXT"`
	Backend        jsondoc.Raw      `json:"backend" sql:"type:TEXT"`
	PersistStates  jsondoc.Raw      `json:"persistStates" sql:"type:TEXT"`
	SubmitStates   jsondoc.Raw      `json:"submitStates" sql:"type:TEXT"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d *WorkflowDefinition) TableName() string {
	return "workflow_definitions"
}

type DefinitionCreation struct {
	ID             types.ID         `json:"id"`
	Name           string           `json:"name" binding:"required,lte=255"`
	Version        int              `json:"version" binding:"gte=0"`
	DefinitionType string           `json:"definitionType" binding:"lte=64"`
	Definition     jsondoc.Document `json:"definition" binding:"required"`
	Config         jsondoc.Document `json:"config"`
	Extensions     jsondoc.Raw      `json:"extensions"`
	Backend        jsondoc.Raw      `json:"backend"`
	PersistStates  jsondoc.Raw      `json:"persistStates"`
	SubmitStates   jsondoc.Raw      `json:"submitStates"`
	CreatedBy      string           `json:"createdBy"`
}
