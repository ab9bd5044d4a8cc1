package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/config"
	"badminton_club/internal/logging"
	"badminton_club/internal/models"
	"badminton_club/internal/services"
	"badminton_club/internal/store"
	"badminton_club/internal/tasks"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory), e.g. mark_overdue_payments")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 or RFC3339)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks, e.g. FREQ=WEEKLY;BYDAY=SU")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")

	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [-arguments <json_args>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatal("invalid JSON arguments", zap.Error(err))
	}

	due, err := parseDue(*dueStr)
	if err != nil {
		log.Fatal("invalid due date, use '2006-01-02 15:04' (local time) or RFC3339", zap.Error(err))
	}

	var recurringPtr *string
	switch models.ScheduledTaskType(*taskType) {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if *recurring == "" {
			log.Fatal("recurring tasks need -recurring")
		}
		if _, err := models.ParseRecurrence(*recurring, due); err != nil {
			log.Fatal("invalid recurring rule", zap.String("rule", *recurring), zap.Error(err))
		}
		recurringPtr = recurring
	default:
		log.Fatal("unknown task type", zap.String("tasktype", *taskType))
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, models.ScheduledTaskType(*taskType), *maxAttempt)
	if err != nil {
		log.Fatal("build task", zap.Error(err))
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect DB", zap.Error(err))
	}
	if err := store.NewGormStore(db).CreateScheduledTask(context.Background(), task); err != nil {
		log.Fatal("failed to create task", zap.Error(err))
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due.Format(time.RFC3339), task.TaskType)
	if task.RecurringInterval != nil {
		fmt.Printf("Rule: %s\n", *task.RecurringInterval)
	}
}

func parseDue(s string) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}
