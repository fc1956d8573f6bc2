package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.99, Round2(10.994))
	assert.Equal(t, 11.0, Round2(10.999))
	assert.Equal(t, 0.0, Round2(0))
}

func TestNormalizePtrDTO(t *testing.T) {
	name := "  padded  "
	value := 12.346
	dto := struct {
		Name  *string
		Value *float64
		Nil   *string
	}{Name: &name, Value: &value}

	NormalizePtrDTO(&dto)

	assert.Equal(t, "padded", *dto.Name)
	assert.Equal(t, 12.35, *dto.Value)
	assert.Nil(t, dto.Nil)
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	status := "confirmed"
	value := 42.0
	dto := struct {
		Status  *string  `json:"status"`
		Value   *float64 `json:"value"`
		Skipped *string  `json:"-"`
		Absent  *string  `json:"note"`
	}{Status: &status, Value: &value, Skipped: &status}

	updates := UpdatesFromPtrDTO(&dto, nil)

	assert.Equal(t, map[string]any{"status": "confirmed", "value": 42.0}, updates)
}

func TestUpdatesFromPtrDTORenames(t *testing.T) {
	due := "2026-09-30"
	dto := struct {
		DueDate *string `json:"dueDate"`
	}{DueDate: &due}

	updates := UpdatesFromPtrDTO(&dto, map[string]string{"dueDate": "due_date"})

	assert.Equal(t, map[string]any{"due_date": "2026-09-30"}, updates)
}
