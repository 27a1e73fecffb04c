package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type booking struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	Email     string `json:"email" validate:"omitempty,email"`
	Time      string `json:"time" validate:"required,hhmm"`
	Sex       string `json:"sex" validate:"omitempty,oneof=male female"`
}

func TestValidateUsesJSONNamesAndMessages(t *testing.T) {
	v := New(map[string]string{
		"patient_id.required": "Selecione um paciente",
	})

	err := v.Validate(&booking{Time: "25:00", Sex: "other"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)

	byField := map[string]string{}
	for _, f := range appErr.Fields {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "Selecione um paciente", byField["patient_id"])
	assert.Equal(t, "Horário inválido.", byField["time"])
	assert.Equal(t, "Valor inválido.", byField["sex"])
	assert.NotContains(t, byField, "email")
}

func TestValidateHHMM(t *testing.T) {
	v := New(nil)
	for _, ok := range []string{"08:00", "9:30", "23:59", "00:00"} {
		assert.NoError(t, v.Validate(&booking{PatientID: "3f1c2b8e-4b6a-4d0e-9a51-0c1d2e3f4a5b", Time: ok}), ok)
	}
	for _, bad := range []string{"24:00", "12:60", "1230", "aa:bb"} {
		assert.Error(t, v.Validate(&booking{PatientID: "3f1c2b8e-4b6a-4d0e-9a51-0c1d2e3f4a5b", Time: bad}), bad)
	}
}

func TestFieldsEmptyOnValid(t *testing.T) {
	v := New(nil)
	assert.Empty(t, v.Fields(&booking{
		PatientID: "3f1c2b8e-4b6a-4d0e-9a51-0c1d2e3f4a5b",
		Email:     "ana@example.com",
		Time:      "10:00",
		Sex:       "female",
	}))
}
