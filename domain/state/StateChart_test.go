package state_test

import (
	"encoding/json"
	"errors"

	"backoffice/bizerror"
	"backoffice/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func definition(s string) map[string]interface{} {
	m := map[string]interface{}{}
	Expect(json.Unmarshal([]byte(s), &m)).To(Succeed())
	return m
}

func ptr(s string) *string {
	return &s
}

var _ = Describe("StateChart", func() {
	var (
		chart *state.StateChart
	)

	BeforeEach(func() {
		//            review       approved     rejected
		// idle       V (start)    V (approve)  X
		// review     -            V (approve)  V (reject)
		// rejected   V (revise)   X            -
		var err error
		chart, err = state.Parse(definition(`{
			"id": "kyc",
			"initial": "idle",
			"states": {
				"idle": {"on": {"start": "review", "approve": {"target": "approved"}}},
				"review": {"on": {"approve": [{"target": "approved"}], "reject": "rejected"}},
				"rejected": {"on": {"revise": "review"}},
				"approved": {"type": "final"}
			}
		}`))
		Expect(err).To(BeNil())
	})

	Describe("Parse", func() {
		It("should read states and transitions in a stable order", func() {
			Expect(chart.ID).To(Equal("kyc"))
			Expect(chart.Initial).To(Equal("idle"))
			Expect(chart.States).To(Equal([]state.State{
				{Name: "approved", Final: true}, {Name: "idle"}, {Name: "rejected"}, {Name: "review"},
			}))
			Expect(chart.Transitions).To(Equal([]state.Transition{
				{Event: "approve", From: "idle", To: "approved"},
				{Event: "start", From: "idle", To: "review"},
				{Event: "revise", From: "rejected", To: "review"},
				{Event: "approve", From: "review", To: "approved"},
				{Event: "reject", From: "review", To: "rejected"},
			}))
		})

		It("should accept an empty definition without transitions", func() {
			empty, err := state.Parse(map[string]interface{}{})
			Expect(err).To(BeNil())
			Expect(empty.NextEvents(nil)).To(BeEmpty())
			_, err = empty.Next(nil, "approve")
			Expect(errors.Is(err, bizerror.ErrInvalidEvent)).To(BeTrue())
		})

		It("should reject a transition to an undeclared state", func() {
			_, err := state.Parse(definition(`{"initial":"a","states":{"a":{"on":{"go":"b"}}}}`))
			Expect(err).ToNot(BeNil())
			var badParam *bizerror.ErrBadParam
			Expect(errors.As(err, &badParam)).To(BeTrue())
		})

		It("should reject an undeclared initial state", func() {
			_, err := state.Parse(definition(`{"initial":"x","states":{"a":{}}}`))
			Expect(err).ToNot(BeNil())
		})

		It("should reject states which are not an object", func() {
			_, err := state.Parse(definition(`{"initial":"a","states":["a"]}`))
			Expect(err).ToNot(BeNil())
		})
	})

	Describe("Next", func() {
		It("should start from the initial state when current is nil", func() {
			next, err := chart.Next(nil, "start")
			Expect(err).To(BeNil())
			Expect(next).To(Equal("review"))
		})

		It("should follow every declared edge", func() {
			for _, transition := range chart.Transitions {
				next, err := chart.Next(ptr(transition.From), transition.Event)
				Expect(err).To(BeNil())
				Expect(next).To(Equal(transition.To))
			}
		})

		It("should reject events without an edge", func() {
			_, err := chart.Next(ptr("rejected"), "approve")
			Expect(errors.Is(err, bizerror.ErrInvalidEvent)).To(BeTrue())
			_, err = chart.Next(ptr("approved"), "revise")
			Expect(errors.Is(err, bizerror.ErrInvalidEvent)).To(BeTrue())
			_, err = chart.Next(ptr("unknown"), "start")
			Expect(errors.Is(err, bizerror.ErrInvalidEvent)).To(BeTrue())
		})
	})

	Describe("NextEvents", func() {
		It("should list sorted events of the current state", func() {
			Expect(chart.NextEvents(nil)).To(Equal([]string{"approve", "start"}))
			Expect(chart.NextEvents(ptr("review"))).To(Equal([]string{"approve", "reject"}))
			Expect(chart.NextEvents(ptr("approved"))).To(BeEmpty())
		})
	})

	Describe("IsFinal and HasState", func() {
		It("should report final and declared states", func() {
			Expect(chart.IsFinal("approved")).To(BeTrue())
			Expect(chart.IsFinal("review")).To(BeFalse())
			Expect(chart.IsFinal("unknown")).To(BeFalse())
			Expect(chart.HasState("rejected")).To(BeTrue())
			Expect(chart.HasState("unknown")).To(BeFalse())
		})
	})
})
