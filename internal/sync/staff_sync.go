package sync

import (
	"errors"
	"strings"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

// StaffSync replays staff mutations; salary fields drive payroll upstream
type StaffSync = EntityService[remote.StaffMember, models.StaffMember]

func NewStaffSync(gw remote.Gateway[remote.StaffMember], store LocalStore[models.StaffMember], queue OperationQueue, opts ServiceOptions) *StaffSync {
	return newEntityService(EntityStaff, gw, store, queue, staffToLocal, validateStaff, opts)
}

func validateStaff(s remote.StaffMember) error {
	switch {
	case s.ID == "":
		return errors.New("staff id is required")
	case strings.TrimSpace(s.Name) == "":
		return errors.New("staff name is required")
	case s.MonthlySalary < 0 || s.HourlyRate < 0:
		return errors.New("salary cannot be negative")
	}
	return nil
}
