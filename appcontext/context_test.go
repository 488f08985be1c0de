package appcontext

import (
	"fmt"
	"testing"
	"time"

	"github.com/nomis52/vetflow/archetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(kind, id string) *archetype.Entity {
	return archetype.NewEntityWithID(kind, id)
}

func TestDefault(t *testing.T) {
	t.Run("set and get typed slot", func(t *testing.T) {
		c := New()
		customer := entity(archetype.KindCustomer, "c1")
		require.NoError(t, c.Set(Customer, customer))
		assert.Equal(t, customer, c.Get(Customer))
	})

	t.Run("set rejects kind mismatch", func(t *testing.T) {
		c := New()
		err := c.Set(Customer, entity(archetype.KindPatient, "p1"))
		assert.ErrorIs(t, err, ErrKindMismatch)
		assert.Nil(t, c.Get(Customer))
	})

	t.Run("user and clinician are separate slots", func(t *testing.T) {
		c := New()
		user := entity(archetype.KindUser, "u1")
		vet := entity(archetype.KindUser, "u2")
		require.NoError(t, c.Set(User, user))
		require.NoError(t, c.Set(Clinician, vet))
		assert.Equal(t, user, c.Get(User))
		assert.Equal(t, vet, c.Get(Clinician))
		assert.ErrorIs(t, c.Set(User, entity(archetype.KindPatient, "p1")), ErrKindMismatch)
	})

	t.Run("current accepts any kind", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Set(Current, entity(archetype.KindPatientWeight, "w1")))
		require.NoError(t, c.Set(Current, nil))
		assert.Nil(t, c.Get(Current))
	})

	t.Run("add routes by kind", func(t *testing.T) {
		c := New()
		patient := entity(archetype.KindPatient, "p1")
		weight := entity(archetype.KindPatientWeight, "w1")
		c.Add(patient)
		c.Add(weight)
		assert.Equal(t, patient, c.Get(Patient))
		assert.Equal(t, weight, c.Get(Key(archetype.KindPatientWeight)))
	})

	t.Run("in range and resolve", func(t *testing.T) {
		c := New()
		patient := entity(archetype.KindPatient, "p1")
		c.Add(patient)
		c.Add(entity(archetype.KindCustomer, "c1"))

		assert.Equal(t, patient, c.InRange("act.*", "party.patient*"))
		assert.Nil(t, c.InRange("act.*"))

		stale := entity(archetype.KindPatient, "p1")
		assert.Same(t, patient, c.Resolve(stale.Reference()))
		assert.Nil(t, c.Resolve(archetype.Reference{Kind: archetype.KindPatient, LinkID: "nope"}))
	})

	t.Run("remove clears every slot holding the object", func(t *testing.T) {
		c := New()
		patient := entity(archetype.KindPatient, "p1")
		c.Add(patient)
		require.NoError(t, c.Set(Current, patient))
		assert.Len(t, c.Objects(), 1)

		c.Remove(patient)
		assert.Nil(t, c.Get(Patient))
		assert.Nil(t, c.Get(Current))
		assert.Empty(t, c.Objects())
	})

	t.Run("dates", func(t *testing.T) {
		c := New()
		now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		c.SetDate(ScheduleDate, now)
		assert.Equal(t, now, c.Date(ScheduleDate))
		assert.True(t, c.Date(WorkListDate).IsZero())
		c.SetDate(ScheduleDate, time.Time{})
		assert.True(t, c.Date(ScheduleDate).IsZero())
	})
}

func TestLocal(t *testing.T) {
	parent := New()
	parentCustomer := entity(archetype.KindCustomer, "c1")
	parent.Add(parentCustomer)

	tests := []struct {
		name  string
		local archetype.Object
		want  archetype.Object
	}{
		{name: "falls back to parent", local: nil, want: parentCustomer},
		{name: "local shadows parent", local: entity(archetype.KindCustomer, "c2"), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := NewLocal(parent)
			want := tt.want
			if tt.local != nil {
				local.Add(tt.local)
				want = tt.local
			}
			assert.Equal(t, want, local.Get(Customer))
			assert.Equal(t, parentCustomer, parent.Get(Customer))
		})
	}

	t.Run("nil when neither has a value", func(t *testing.T) {
		local := NewLocal(New())
		assert.Nil(t, local.Get(Patient))
	})

	t.Run("remove never touches the parent", func(t *testing.T) {
		local := NewLocal(parent)
		local.Remove(parentCustomer)
		assert.Equal(t, parentCustomer, local.Get(Customer))
		assert.Equal(t, parentCustomer, parent.Get(Customer))
	})

	t.Run("objects merges without duplicates", func(t *testing.T) {
		local := NewLocal(parent)
		local.Add(parentCustomer)
		local.Add(entity(archetype.KindPatient, "p1"))
		assert.Len(t, local.Objects(), 2)
	})

	t.Run("date falls back", func(t *testing.T) {
		p := New()
		day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		p.SetDate(WorkListDate, day)
		local := NewLocal(p)
		assert.Equal(t, day, local.Date(WorkListDate))
	})
}

func TestGlobal(t *testing.T) {
	t.Run("listeners see changes", func(t *testing.T) {
		g := NewGlobal()
		var events []string
		unsubscribe := g.OnChange(func(key Key, prev, next archetype.Object) {
			events = append(events, fmt.Sprintf("%s:%v->%v", key, prev != nil, next != nil))
		})

		patient := entity(archetype.KindPatient, "p1")
		g.Add(patient)
		g.Remove(patient)
		unsubscribe()
		g.Add(patient)

		assert.Equal(t, []string{
			"party.patient*:false->true",
			"party.patient*:true->false",
		}, events)
	})

	t.Run("history moves repeat selections to the front", func(t *testing.T) {
		g := NewGlobal()
		a := entity(archetype.KindPatient, "a")
		b := entity(archetype.KindPatient, "b")
		g.Add(a)
		g.Add(b)
		g.Add(entity(archetype.KindPatient, "a"))

		h := g.History(Patient)
		require.Len(t, h, 2)
		assert.Equal(t, "a", h[0].LinkID())
		assert.Equal(t, "b", h[1].LinkID())
	})

	t.Run("history evicts the oldest beyond capacity", func(t *testing.T) {
		g := NewGlobal(WithHistorySize(3))
		for i := 0; i < 5; i++ {
			g.Add(entity(archetype.KindCustomer, fmt.Sprintf("c%d", i)))
		}
		h := g.History(Customer)
		require.Len(t, h, 3)
		assert.Equal(t, "c4", h[0].LinkID())
		assert.Equal(t, "c2", h[2].LinkID())
	})

	t.Run("default capacity", func(t *testing.T) {
		g := NewGlobal()
		for i := 0; i < 30; i++ {
			g.Add(entity(archetype.KindCustomer, fmt.Sprintf("c%d", i)))
		}
		assert.Len(t, g.History(Customer), DefaultHistorySize)
	})

	t.Run("clear empties slots and history", func(t *testing.T) {
		g := NewGlobal()
		cleared := 0
		g.OnChange(func(key Key, prev, next archetype.Object) {
			if next == nil {
				cleared++
			}
		})
		g.Add(entity(archetype.KindPatient, "p1"))
		g.Add(entity(archetype.KindCustomer, "c1"))
		g.Clear()

		assert.Empty(t, g.Objects())
		assert.Empty(t, g.History(Patient))
		assert.Equal(t, 2, cleared)
	})

	t.Run("mismatch is not recorded", func(t *testing.T) {
		g := NewGlobal()
		err := g.Set(Customer, entity(archetype.KindPatient, "p1"))
		assert.ErrorIs(t, err, ErrKindMismatch)
		assert.Empty(t, g.History(Customer))
	})
}
