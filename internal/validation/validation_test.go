package validation_test

import (
	"testing"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleContact struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type sampleInput struct {
	Title    string        `json:"title" validate:"required,min=5,max=100"`
	IMEI     string        `json:"imei" validate:"omitempty,imei"`
	LostDate string        `json:"lostDate" validate:"required,isodate"`
	Username string        `json:"username" validate:"omitempty,username"`
	Contact  sampleContact `json:"contactInfo"`
}

func validInput() sampleInput {
	return sampleInput{
		Title:    "Lost iPhone 13",
		IMEI:     "356938035643809",
		LostDate: "2024-03-01",
		Username: "kasun_p",
		Contact:  sampleContact{Phone: "+94 77 123 4567"},
	}
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	e, ok := apperrors.As(err)
	require.True(t, ok, "expected an apperrors.Error, got %v", err)
	require.Equal(t, apperrors.KindValidation, e.Kind)
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, validation.Struct(validInput()))
}

func TestStruct_IMEILength(t *testing.T) {
	for _, imei := range []string{"12345678901234", "1234567890123456", "35693803564380a"} {
		in := validInput()
		in.IMEI = imei
		err := validation.Struct(in)
		assert.Equal(t, []string{"imei"}, fieldNames(t, err), "imei %q", imei)
	}
}

func TestStruct_AggregatesAllViolations(t *testing.T) {
	in := validInput()
	in.Title = "abc"
	in.LostDate = "yesterday"
	in.Username = "bad name!"
	in.Contact.Phone = ""

	err := validation.Struct(in)
	assert.ElementsMatch(t, []string{"title", "lostDate", "username", "contactInfo.phone"}, fieldNames(t, err))
}

func TestParseDate(t *testing.T) {
	d, err := validation.ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	_, err = validation.ParseDate("2024-03-01T10:15:00+05:30")
	assert.NoError(t, err)

	_, err = validation.ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	a := apperrors.Validation("", apperrors.Field("title", "min", "too short"))
	b := apperrors.Validation("", apperrors.Field("images", "max", "too many"))
	err := validation.Merge(nil, a, b)
	assert.ElementsMatch(t, []string{"title", "images"}, fieldNames(t, err))
	assert.NoError(t, validation.Merge(nil, nil))
}
