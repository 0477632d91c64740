package booking_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/tests"
)

func TestUpdateBooking_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	str := func(s string) *string { return &s }
	status := func(s string) *booking.Status { st := booking.Status(s); return &st }
	minutes := func(m int) *int { return &m }

	tests := []struct {
		name        string
		ub          booking.UpdateBooking
		wantFields  []string
		wantTeacher *string
		wantStatus  *booking.Status
	}{
		{
			name:        "unassign only",
			ub:          booking.UpdateBooking{TeacherID: str("  ")},
			wantTeacher: str(""),
		},
		{
			name:       "unassign with invalid fields",
			ub:         booking.UpdateBooking{TeacherID: str(""), Status: status("bogus"), DurationMinutes: minutes(-5)},
			wantFields: []string{"status", "duration_minutes"},
		},
		{
			name:       "invalid fields",
			ub:         booking.UpdateBooking{Status: status("bogus"), DurationMinutes: minutes(-5)},
			wantFields: []string{"status", "duration_minutes"},
		},
		{
			name:       "invalid teacher",
			ub:         booking.UpdateBooking{TeacherID: str("not-a-uuid")},
			wantFields: []string{"teacher_id"},
		},
		{
			name:       "valid",
			ub:         booking.UpdateBooking{TeacherID: str(uuid.New().String()), Status: status(" Cancelled "), DurationMinutes: minutes(45)},
			wantStatus: status("cancelled"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ub.Validate(validate)
			if tt.wantFields == nil {
				require.NoError(t, err)
			} else {
				var vErrs validator.ValidationErrors
				require.ErrorAs(t, err, &vErrs)
				fields := make([]string, 0, len(vErrs))
				for _, vErr := range vErrs {
					fields = append(fields, vErr.Field())
				}
				assert.ElementsMatch(t, tt.wantFields, fields)
			}
			if tt.wantTeacher != nil {
				assert.Equal(t, tt.wantTeacher, tt.ub.TeacherID)
			}
			if tt.wantStatus != nil {
				assert.Equal(t, tt.wantStatus, tt.ub.Status)
			}
		})
	}
}
