package jsondoc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const DocumentsKey = "documents"

var documentNamespace = uuid.MustParse("8c7b7e0e-5b8a-4f5e-9d43-2f6f0b1c9a11")

// identityFields name a document independently of its decision and properties.
var identityFields = []string{"category", "type", "issuer.country", "issuer.type", "version", "issuingVersion"}

// Documents returns the object elements of context.documents, elements of other shapes are skipped.
func Documents(context Document) []Document {
	arr, ok := context[DocumentsKey].([]interface{})
	if !ok {
		return nil
	}
	var docs []Document
	for _, e := range arr {
		if obj, ok := asObject(e); ok {
			docs = append(docs, obj)
		}
	}
	return docs
}

// EnsureDocumentIDs assigns an id to every document lacking one, it reports whether any id was assigned.
// Ids are name based uuids of the identity fields, so the same document sent again gets the same id.
// Identical id-less documents in one array are told apart by their position among each other.
func EnsureDocumentIDs(context Document) bool {
	assigned := false
	seen := map[string]int{}
	for _, doc := range Documents(context) {
		if elementID(map[string]interface{}(doc)) != "" {
			continue
		}
		key := identityKey(doc)
		doc["id"] = documentID(key, seen[key])
		seen[key]++
		assigned = true
	}
	return assigned
}

func documentID(key string, ordinal int) string {
	if ordinal > 0 {
		key = fmt.Sprintf("%s#%d", key, ordinal)
	}
	return uuid.NewSHA1(documentNamespace, []byte(key)).String()
}

// identityKey falls back to the whole content without id and decision when no identity field is present.
func identityKey(doc Document) string {
	parts := make([]string, 0, len(identityFields))
	found := false
	for _, f := range identityFields {
		v := doc.Get(f)
		if v.Exists() {
			found = true
		}
		parts = append(parts, f+"="+v.String())
	}
	if found {
		return strings.Join(parts, "|")
	}
	content := doc.Clone()
	delete(content, "id")
	delete(content, "decision")
	b, _ := json.Marshal(map[string]interface{}(content))
	return string(b)
}

func DecisionStatus(doc Document) string {
	decision := doc.Object("decision")
	if decision == nil {
		return ""
	}
	status, _ := decision["status"].(string)
	return status
}

// ChangedDecisions returns the ids of documents in newContext whose decision status differs from the
// document with the same id in oldContext. A document absent from oldContext counts when it carries a status.
func ChangedDecisions(oldContext, newContext Document) []string {
	previous := map[string]string{}
	for _, doc := range Documents(oldContext) {
		if id := elementID(map[string]interface{}(doc)); id != "" {
			previous[id] = DecisionStatus(doc)
		}
	}

	var changed []string
	for _, doc := range Documents(newContext) {
		id := elementID(map[string]interface{}(doc))
		if id == "" {
			continue
		}
		status := DecisionStatus(doc)
		old, found := previous[id]
		if (found && old != status) || (!found && status != "") {
			changed = append(changed, id)
		}
	}
	return changed
}

func DocumentDecisionChanged(oldContext, newContext Document) bool {
	return len(ChangedDecisions(oldContext, newContext)) > 0
}

// StripDocumentField returns a copy of context with field removed from every document.
func StripDocumentField(context Document, field string) Document {
	stripped := context.Clone()
	for _, doc := range Documents(stripped) {
		delete(doc, field)
	}
	return stripped
}
