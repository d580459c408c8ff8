package sync

import (
	"errors"

	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
)

type AttendanceSync = EntityService[remote.Attendance, models.Attendance]

func NewAttendanceSync(gw remote.Gateway[remote.Attendance], store LocalStore[models.Attendance], queue OperationQueue, opts ServiceOptions) *AttendanceSync {
	return newEntityService(EntityAttendance, gw, store, queue, attendanceToLocal, validateAttendance, opts)
}

func validateAttendance(a remote.Attendance) error {
	switch {
	case a.ID == "":
		return errors.New("attendance id is required")
	case a.StaffID == "":
		return errors.New("attendance has no staff member")
	case a.Day.IsZero():
		return errors.New("attendance has no day")
	case a.CheckIn != nil && a.CheckOut != nil && a.CheckOut.Before(*a.CheckIn):
		return errors.New("check-out before check-in")
	}
	return nil
}
