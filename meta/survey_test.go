package meta

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestSurveySimple(t *testing.T) {
	type Article struct {
		Meta     `quartz:"name=com.example.Article,id=5f0c6a55-6f57-4d4b-9cd1-0d0fd6e1f3a9"`
		Title    string `quartz:"index,ignorecase"`
		Tags     []string `quartz:"name=tags,index"`
		Created  time.Time
		Rating   float64
		Author   uuid.UUID
		Language language.Tag
		Owner    *struct{ Name string } `quartz:"embedded"`
		Skipped  int                    `quartz:"-"`
	}

	s := Survey(reflect.TypeOf(Article{}))
	require.Equal(t, "com.example.Article", s.Qualifier)
	require.Equal(t, uuid.MustParse("5f0c6a55-6f57-4d4b-9cd1-0d0fd6e1f3a9"), s.ID)
	require.True(t, s.IsType())
	require.Len(t, s.Fields(), 7)

	expected := []struct {
		name       string
		itemType   ItemType
		collection bool
	}{
		{"Title", TypeText, false},
		{"tags", TypeText, true},
		{"Created", TypeDate, false},
		{"Rating", TypeNumber, false},
		{"Author", TypeUUID, false},
		{"Language", TypeLocale, false},
		{"Owner", TypeRecord, false},
	}
	for i, e := range expected {
		f := s.Fields()[i]
		require.Equal(t, e.name, f.InternalName)
		require.Equal(t, e.itemType, f.ItemType, e.name)
		require.Equal(t, e.collection, f.Collection, e.name)
		require.Equal(t, "com.example.Article", f.Declaring)
	}
	owner, ok := s.Field("Owner")
	require.True(t, ok)
	require.True(t, owner.Embedded)
	_, ok = s.Field("Skipped")
	require.False(t, ok)

	require.Len(t, s.Indexes(), 2)
	require.Equal(t, []string{"Title"}, s.Indexes()[0].Fields)
	require.False(t, s.Indexes()[0].CaseSensitive)
	require.Equal(t, []string{"tags"}, s.Indexes()[1].Fields)
	require.True(t, s.Indexes()[1].CaseSensitive)
}

func TestSurveyCompound(t *testing.T) {
	type Base struct {
		Author string
	}
	type Post struct {
		Meta `quartz:"name=Post,embedded,compound=Author+Title,compound-ci=Title+Author"`
		Base
		Title string
	}

	s := Survey(reflect.TypeOf(Post{}))
	require.True(t, s.Embedded)
	require.Len(t, s.Indexes(), 2)
	require.Equal(t, "Post/Author,Title", s.Indexes()[0].UniqueName())
	require.True(t, s.Indexes()[0].CaseSensitive)
	require.Equal(t, "Post/Title,Author", s.Indexes()[1].UniqueName())
	require.False(t, s.Indexes()[1].CaseSensitive)
}

func TestSurveyExplicitType(t *testing.T) {
	type point struct{ X, Y float64 }
	type Place struct {
		Meta     `quartz:"name=Place"`
		Position point `quartz:"type=location,index"`
	}

	s := Survey(reflect.TypeOf(Place{}))
	f, ok := s.Field("Position")
	require.True(t, ok)
	require.Equal(t, TypeLocation, f.ItemType)
}

func TestSurveyErrors(t *testing.T) {
	type noName struct {
		Field int
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(noName{})) })

	type unexported struct {
		Meta  `quartz:"name=x"`
		field int //nolint:unused
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(unexported{})) })

	type badType struct {
		Meta  `quartz:"name=x"`
		Field int `quartz:"type=blob"`
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(badType{})) })

	type badCompound struct {
		Meta  `quartz:"name=x,compound=Field+Missing"`
		Field int
	}
	require.Panics(t, func() { Survey(reflect.TypeOf(badCompound{})) })

	require.Panics(t, func() { Survey(reflect.TypeOf(0)) })
}
