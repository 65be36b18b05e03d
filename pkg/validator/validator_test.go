package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact" validate:"required,contact"`
	Gender  string `json:"gender" validate:"oneof=Male Female Other"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Name: "A", Contact: "9876543210", Gender: "Female"})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldsInOrder(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Contact: "12345", Gender: "X"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	assert.Equal(t, "name", verrs[0].Field)
	assert.Equal(t, "contact", verrs[1].Field)
	assert.Equal(t, "contact must be a 10-digit number", verrs[1].Message)
	assert.Equal(t, "gender", verrs[2].Field)
	assert.Equal(t, verrs[0], verrs.First())
}

func TestValidate_CustomMessages(t *testing.T) {
	v := New(WithMessages(map[string]string{
		"contact.contact": "Please enter valid 10-digit phone number.",
	}))
	err := v.Validate(&sample{Name: "A", Contact: "98765abc10", Gender: "Male"})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Please enter valid 10-digit phone number.", verrs.First().Message)
	assert.Equal(t, "Please enter valid 10-digit phone number.", verrs.Error())
}

func TestFromBinding(t *testing.T) {
	engine := validator.New()
	require.NoError(t, Register(engine))

	err := engine.Struct(&sample{Contact: "abc", Gender: "Male"})
	verrs, ok := FromBinding(err)
	require.True(t, ok)
	require.Len(t, verrs, 2)
	assert.Equal(t, "name is required", verrs[0].Message)
	assert.Equal(t, "contact", verrs[1].Field)

	_, ok = FromBinding(errors.New("EOF"))
	assert.False(t, ok)
}
