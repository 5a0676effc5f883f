package filter

type Entity string

const (
	EntityIndividuals Entity = "individuals"
	EntityBusinesses  Entity = "businesses"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindID
	kindTime
	kindJSON
)

type field struct {
	column string
	kind   fieldKind
}

// filterable fields may appear in where, JSON columns may only be selected.
func (f field) filterable() bool {
	return f.kind != kindJSON
}

type relation struct {
	schema *schema
	// join renders the join of alias to the parent alias.
	join func(parent, alias string) string
}

type schema struct {
	table     string
	fields    map[string]field
	relations map[string]relation
}

// capabilities is the static allow-list of one entity type: which fields and relations a filter may read
// and which columns a list may be ordered by.
type capabilities struct {
	root     *schema
	sortable map[string]sortColumn
	// scope restricts runtimes to the ones owned by this entity type.
	scope string
}

type sortColumn struct {
	path   []string
	column string
}

var (
	endUserSchema = &schema{
		table: "end_users",
		fields: map[string]field{
			"id":             {column: "id", kind: kindID},
			"correlationId":  {column: "correlation_id", kind: kindString},
			"firstName":      {column: "first_name", kind: kindString},
			"lastName":       {column: "last_name", kind: kindString},
			"email":          {column: "email", kind: kindString},
			"phone":          {column: "phone", kind: kindString},
			"dateOfBirth":    {column: "date_of_birth", kind: kindString},
			"avatarUrl":      {column: "avatar_url", kind: kindString},
			"approvalState":  {column: "approval_state", kind: kindString},
			"additionalInfo": {column: "additional_info", kind: kindJSON},
			"createdAt":      {column: "created_at", kind: kindTime},
			"updatedAt":      {column: "updated_at", kind: kindTime},
		},
	}

	businessSchema = &schema{
		table: "businesses",
		fields: map[string]field{
			"id":                     {column: "id", kind: kindID},
			"correlationId":          {column: "correlation_id", kind: kindString},
			"companyName":            {column: "company_name", kind: kindString},
			"registrationNumber":     {column: "registration_number", kind: kindString},
			"legalForm":              {column: "legal_form", kind: kindString},
			"countryOfIncorporation": {column: "country_of_incorporation", kind: kindString},
			"website":                {column: "website", kind: kindString},
			"approvalState":          {column: "approval_state", kind: kindString},
			"additionalInfo":         {column: "additional_info", kind: kindJSON},
			"createdAt":              {column: "created_at", kind: kindTime},
			"updatedAt":              {column: "updated_at", kind: kindTime},
		},
	}

	workflowDefinitionSchema = &schema{
		table: "workflow_definitions",
		fields: map[string]field{
			"id":             {column: "id", kind: kindID},
			"name":           {column: "name", kind: kindString},
			"version":        {column: "version", kind: kindNumber},
			"definitionType": {column: "definition_type", kind: kindString},
			"definition":     {column: "definition", kind: kindJSON},
			"config":         {column: "config", kind: kindJSON},
			"createdAt":      {column: "created_at", kind: kindTime},
		},
	}

	assigneeSchema = &schema{
		table: "users",
		fields: map[string]field{
			"id":        {column: "id", kind: kindID},
			"firstName": {column: "first_name", kind: kindString},
			"lastName":  {column: "last_name", kind: kindString},
			"email":     {column: "email", kind: kindString},
		},
	}

	runtimeFields = map[string]field{
		"id":                        {column: "id", kind: kindID},
		"workflowDefinitionId":      {column: "workflow_definition_id", kind: kindID},
		"workflowDefinitionVersion": {column: "workflow_definition_version", kind: kindNumber},
		"assigneeId":                {column: "assignee_id", kind: kindID},
		"context":                   {column: "context", kind: kindJSON},
		"config":                    {column: "config", kind: kindJSON},
		"state":                     {column: "state", kind: kindString},
		"status":                    {column: "status", kind: kindString},
		"resolvedAt":                {column: "resolved_at", kind: kindTime},
		"assignedAt":                {column: "assigned_at", kind: kindTime},
		"createdBy":                 {column: "created_by", kind: kindString},
		"createdAt":                 {column: "created_at", kind: kindTime},
		"updatedAt":                 {column: "updated_at", kind: kindTime},
	}

	individualsCapabilities = buildCapabilities(
		"endUserId", "end_user_id", "endUser", endUserSchema,
		map[string]sortColumn{
			"createdAt": {column: "created_at"},
			"firstName": {path: []string{"endUser"}, column: "first_name"},
			"lastName":  {path: []string{"endUser"}, column: "last_name"},
			"email":     {path: []string{"endUser"}, column: "email"},
		})

	businessesCapabilities = buildCapabilities(
		"businessId", "business_id", "business", businessSchema,
		map[string]sortColumn{
			"createdAt":   {column: "created_at"},
			"companyName": {path: []string{"business"}, column: "company_name"},
		})
)

func buildCapabilities(ownerField, ownerColumn, relationName string, owner *schema, sortable map[string]sortColumn) *capabilities {
	fields := make(map[string]field, len(runtimeFields)+1)
	for k, v := range runtimeFields {
		fields[k] = v
	}
	fields[ownerField] = field{column: ownerColumn, kind: kindID}

	root := &schema{
		table:  "workflow_runtime_data",
		fields: fields,
		relations: map[string]relation{
			relationName:         {schema: owner, join: joinOn(ownerColumn, "id")},
			"workflowDefinition": {schema: workflowDefinitionSchema, join: joinOn("workflow_definition_id", "id")},
			"assignee":           {schema: assigneeSchema, join: joinOn("assignee_id", "id")},
		},
	}
	return &capabilities{root: root, sortable: sortable, scope: ownerColumn}
}

func joinOn(parentColumn, childColumn string) func(parent, alias string) string {
	return func(parent, alias string) string {
		return alias + "." + childColumn + " = " + parent + "." + parentColumn
	}
}

func capabilitiesOf(entity Entity) (*capabilities, bool) {
	switch entity {
	case EntityIndividuals:
		return individualsCapabilities, true
	case EntityBusinesses:
		return businessesCapabilities, true
	}
	return nil, false
}

func (e Entity) Valid() bool {
	_, ok := capabilitiesOf(e)
	return ok
}
