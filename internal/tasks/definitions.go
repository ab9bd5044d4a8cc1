package tasks

import (
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/services"
	"badminton_club/internal/store"
)

// Deps are the collaborators the task handlers need. Messenger may be nil, in
// which case reminders are not registered.
type Deps struct {
	Sessions  *services.SessionPaymentService
	Reconcile *services.ReconcileService
	Payments  store.PaymentStore
	Members   store.MemberStore
	Tasks     store.TaskStore
	Messenger services.Messenger
	GraceDays int
	Now       func() time.Time
	Log       *zap.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	logInfo := &LogInfoTaskDef{log: deps.Log}
	r.Register(logInfo.TaskID(), logInfo.HandleExecution)

	if deps.Sessions != nil {
		generate := &GenerateSessionPaymentsTaskDef{sessions: deps.Sessions}
		r.Register(generate.TaskID(), generate.HandleExecution)
	}

	if deps.Reconcile != nil {
		cleanup := &CleanupDuplicatesTaskDef{reconcile: deps.Reconcile}
		r.Register(cleanup.TaskID(), cleanup.HandleExecution)
	}

	if deps.Payments != nil {
		overdue := &MarkOverdueTaskDef{payments: deps.Payments, graceDays: deps.GraceDays, now: deps.Now, log: deps.Log}
		r.Register(overdue.TaskID(), overdue.HandleExecution)
	}

	if deps.Payments != nil && deps.Members != nil && deps.Tasks != nil && deps.Messenger != nil {
		reminders := &SendRemindersTaskDef{
			payments:  deps.Payments,
			members:   deps.Members,
			tasks:     deps.Tasks,
			messenger: deps.Messenger,
			now:       deps.Now,
			log:       deps.Log,
		}
		r.Register(reminders.TaskID(), reminders.HandleExecution)
	}
}
