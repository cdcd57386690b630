// +build integration

package models

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jinzhu/gorm"
)

func TestRunEvents(t *testing.T) {
	RunTransaction(func(db *gorm.DB) {
		d := RunDataSource(db)
		run := NewRun("myproject", "model.json", "out", "xcvu13p-flga2577-2-e")
		if err := d.Create(&run); err != nil {
			t.Fatal(err)
		}
		for _, status := range []string{StatusStarted, StatusCompiled} {
			if _, err := d.AddEvent(&run, PostRunEvent{Status: status}); err != nil {
				t.Fatal(err)
			}
		}
		_, err := d.AddEvent(&run, PostRunEvent{Status: StatusStarted})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		runs, err := d.GetWithStatus([]string{StatusCompiled}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != run.ID {
			t.Fatalf("\nExpected: %+v\nGot:      %+v\n", run, runs)
		}

		stored, err := d.ByID(run.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status() != StatusCompiled {
			t.Errorf("expected %s, got %s", StatusCompiled, stored.Status())
		}
	})
}

func TestStoreRunReport(t *testing.T) {
	RunTransaction(func(db *gorm.DB) {
		d := RunDataSource(db)
		run := NewRun("myproject", "model.json", "out", "")
		if err := d.Create(&run); err != nil {
			t.Fatal(err)
		}
		report := Report{
			ModuleName: "myproject",
			LutSummary: GroupSummary{Used: 50888, Available: 1728000, Detail: PartDetails{}},
		}
		if err := d.StoreReport(run, report); err != nil {
			t.Fatal(err)
		}
		returned, err := d.GetReport(run.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(report, returned) {
			t.Fatalf("\nExpected: %+v\nGot:      %+v\n", report, returned)
		}

		if err := d.SetAccuracy(&run, 0.97, 0.96); err != nil {
			t.Fatal(err)
		}
		stored, err := d.ByID(run.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.FixedAcc == nil || *stored.FixedAcc != 0.96 {
			t.Errorf("fixed accuracy not stored: %+v", stored)
		}
	})
}
