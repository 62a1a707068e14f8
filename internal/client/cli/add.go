package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

func (a *App) addExpense(ctx context.Context) {

	category, err := GetSimpleText(a.reader, "Enter expense category", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	amount, err := GetAmount(a.reader, "Enter amount", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	date, err := GetSimpleText(a.reader, "Enter date (yyyy-mm-dd, empty for today)", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	remark, err := GetSimpleText(a.reader, "Enter remark (optional)", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	rec, err := a.records.AddExpense(ctx, models.Expense{
		Type:   category,
		Remark: remark,
		Amount: amount,
		Date:   date,
	})
	if err != nil {
		a.log.Error(ctx, "error adding expense", "error", err)
		return
	}

	fmt.Fprintf(a.out, "Added expense %s (queued for sync)\n", rec.ID)
}

func (a *App) addDebt(ctx context.Context) {

	direction, err := GetSimpleText(a.reader, "Enter debt direction (lend/borrow)", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	person, err := GetSimpleText(a.reader, "Enter person", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	amount, err := GetAmount(a.reader, "Enter amount", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	date, err := GetSimpleText(a.reader, "Enter date (yyyy-mm-dd, empty for today)", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	repaid, err := GetYesNo(a.reader, "Already repaid?", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	remark, err := GetSimpleText(a.reader, "Enter remark (optional)", a.out)
	if err != nil {
		a.log.Error(ctx, "input error", "error", err)
		return
	}

	rec, err := a.records.AddDebt(ctx, models.Debt{
		Type:     direction,
		Person:   person,
		Amount:   amount,
		Date:     date,
		IsRepaid: repaid,
		Remark:   remark,
	})
	if err != nil {
		a.log.Error(ctx, "error adding debt", "error", err)
		return
	}

	fmt.Fprintf(a.out, "Added debt %s (queued for sync)\n", rec.ID)
}
