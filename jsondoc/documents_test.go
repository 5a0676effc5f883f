package jsondoc

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestChangedDecisions(t *testing.T) {
	RegisterTestingT(t)

	t.Run("status change on a matching id should be detected", func(t *testing.T) {
		oldCtx := doc(`{"documents":[{"id":"d1","decision":{"status":"pending"}},{"id":"d2"}]}`)
		newCtx := doc(`{"documents":[{"id":"d1","decision":{"status":"approved"}},{"id":"d2"}]}`)
		Expect(ChangedDecisions(oldCtx, newCtx)).To(Equal([]string{"d1"}))
		Expect(DocumentDecisionChanged(oldCtx, newCtx)).To(BeTrue())
	})

	t.Run("newly decided document should be detected", func(t *testing.T) {
		oldCtx := doc(`{"documents":[{"id":"d1"}]}`)
		newCtx := doc(`{"documents":[{"id":"d1"},{"id":"d2","decision":{"status":"rejected"}}]}`)
		Expect(ChangedDecisions(oldCtx, newCtx)).To(Equal([]string{"d2"}))
	})

	t.Run("unrelated changes should not be detected", func(t *testing.T) {
		oldCtx := doc(`{"entity":{"id":"e"},"documents":[{"id":"d1","decision":{"status":"approved"}}]}`)
		newCtx := doc(`{"entity":{"id":"e","name":"x"},"documents":[{"id":"d1","type":"passport","decision":{"status":"approved"}},{"id":"d2"}]}`)
		Expect(ChangedDecisions(oldCtx, newCtx)).To(BeEmpty())
		Expect(DocumentDecisionChanged(oldCtx, newCtx)).To(BeFalse())
	})

	t.Run("removed documents should not be detected", func(t *testing.T) {
		oldCtx := doc(`{"documents":[{"id":"d1","decision":{"status":"approved"}}]}`)
		newCtx := doc(`{"documents":[]}`)
		Expect(DocumentDecisionChanged(oldCtx, newCtx)).To(BeFalse())
	})

	t.Run("contexts without documents should not be detected", func(t *testing.T) {
		Expect(DocumentDecisionChanged(nil, doc(`{"documents":"oops"}`))).To(BeFalse())
	})
}

func TestEnsureDocumentIDs(t *testing.T) {
	RegisterTestingT(t)

	ctx := doc(`{"documents":[{"id":"d1"},{"type":"passport"}]}`)
	Expect(EnsureDocumentIDs(ctx)).To(BeTrue())
	docs := Documents(ctx)
	Expect(docs).To(HaveLen(2))
	Expect(docs[0]["id"]).To(Equal("d1"))
	Expect(docs[1]["id"]).ToNot(BeEmpty())

	Expect(EnsureDocumentIDs(ctx)).To(BeFalse())

	t.Run("same document should get the same id whatever its decision", func(t *testing.T) {
		first := doc(`{"documents":[{"type":"passport","issuer":{"country":"GB"},"decision":{"status":"approved"}}]}`)
		second := doc(`{"documents":[{"type":"passport","issuer":{"country":"GB"}}]}`)
		other := doc(`{"documents":[{"type":"passport","issuer":{"country":"FR"}}]}`)
		EnsureDocumentIDs(first)
		EnsureDocumentIDs(second)
		EnsureDocumentIDs(other)

		Expect(Documents(first)[0]["id"]).To(Equal(Documents(second)[0]["id"]))
		Expect(Documents(first)[0]["id"]).ToNot(Equal(Documents(other)[0]["id"]))
	})

	t.Run("identical documents in one array should get distinct stable ids", func(t *testing.T) {
		a := doc(`{"documents":[{"type":"utility_bill"},{"type":"utility_bill"}]}`)
		b := doc(`{"documents":[{"type":"utility_bill"},{"type":"utility_bill"}]}`)
		EnsureDocumentIDs(a)
		EnsureDocumentIDs(b)

		Expect(Documents(a)[0]["id"]).ToNot(Equal(Documents(a)[1]["id"]))
		Expect(Documents(a)[0]["id"]).To(Equal(Documents(b)[0]["id"]))
		Expect(Documents(a)[1]["id"]).To(Equal(Documents(b)[1]["id"]))
	})

	t.Run("documents without identity fields should be named by content", func(t *testing.T) {
		a := doc(`{"documents":[{"pages":[{"uri":"s3://a"}],"decision":{"status":"approved"}}]}`)
		b := doc(`{"documents":[{"pages":[{"uri":"s3://a"}]}]}`)
		c := doc(`{"documents":[{"pages":[{"uri":"s3://b"}]}]}`)
		EnsureDocumentIDs(a)
		EnsureDocumentIDs(b)
		EnsureDocumentIDs(c)

		Expect(Documents(a)[0]["id"]).To(Equal(Documents(b)[0]["id"]))
		Expect(Documents(a)[0]["id"]).ToNot(Equal(Documents(c)[0]["id"]))
	})
}

func TestStripDocumentField(t *testing.T) {
	RegisterTestingT(t)

	ctx := doc(`{"documents":[{"id":"d1","propertiesSchema":{"a":1},"properties":{"a":2}}]}`)
	stripped := StripDocumentField(ctx, "propertiesSchema")
	Expect(asJSON(stripped)).To(MatchJSON(`{"documents":[{"id":"d1","properties":{"a":2}}]}`))
	Expect(Documents(ctx)[0]).To(HaveKey("propertiesSchema"))
}

func TestDocumentColumn(t *testing.T) {
	RegisterTestingT(t)

	t.Run("value and scan should accept string and bytes", func(t *testing.T) {
		v, err := doc(`{"a":1}`).Value()
		Expect(err).To(BeNil())
		Expect(v).To(MatchJSON(`{"a":1}`))

		d := Document{}
		Expect(d.Scan(`{"b":"x"}`)).To(BeNil())
		Expect(d["b"]).To(Equal("x"))
		Expect(d.Scan([]byte(`{"c":true}`))).To(BeNil())
		Expect(d["c"]).To(Equal(true))
		Expect(d.Scan(nil)).To(BeNil())
		Expect(d).To(BeEmpty())
		Expect(d.Scan(12)).ToNot(BeNil())
	})

	t.Run("get should follow gjson paths", func(t *testing.T) {
		d := doc(`{"entity":{"id":"e1","ballerineEntityId":42}}`)
		Expect(d.Get("entity.id").String()).To(Equal("e1"))
		Expect(d.Get("entity.ballerineEntityId").String()).To(Equal("42"))
		Expect(d.Get("entity.missing").Exists()).To(BeFalse())
	})

	t.Run("raw should keep opaque values", func(t *testing.T) {
		var r Raw
		Expect(r.Scan(`["a","b"]`)).To(BeNil())
		v, err := r.Value()
		Expect(err).To(BeNil())
		Expect(v).To(Equal(`["a","b"]`))

		var empty Raw
		v, err = empty.Value()
		Expect(err).To(BeNil())
		Expect(v).To(BeNil())
		b, err := empty.MarshalJSON()
		Expect(err).To(BeNil())
		Expect(string(b)).To(Equal("null"))
	})
}
