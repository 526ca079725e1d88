package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"quiz-lab/domain"
	"quiz-lab/infrastructure/storage"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	status := flag.String("status", "", "Only show rooms in this status")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repo := storage.NewSnapshotRepository(db, logs.GetLoggerFromString("ERROR"), 0)
	snapshots, err := repo.List()
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Status", "Phase", "Question", "Players", "Skipped", "Idle", "Leader"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, snap := range snapshots {
		if *status != "" && !strings.EqualFold(*status, string(snap.Status)) {
			continue
		}
		table.Append(row(snap))
	}
	table.Render()
}

func row(snap domain.Snapshot) []string {
	connected := 0
	leader := "-"
	best := -1
	for _, p := range snap.Players {
		if p.IsConnected {
			connected++
		}
		if !p.IsHost && p.Score > best {
			best = p.Score
			leader = fmt.Sprintf("%s:%d", p.DisplayName, p.Score)
		}
	}
	skipped := make([]string, 0, len(snap.SkippedQuestionIndices))
	for _, i := range snap.SkippedQuestionIndices {
		skipped = append(skipped, strconv.Itoa(i))
	}
	return []string{
		string(snap.Code),
		string(snap.Status),
		string(snap.Phase),
		fmt.Sprintf("%d/%d", snap.CurrentQuestionIndex+1, snap.TotalQuestions),
		fmt.Sprintf("%d/%d", connected, len(snap.Players)),
		strings.Join(skipped, ","),
		fmt.Sprintf("%ds", snap.IdleMs/1000),
		leader,
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed server leaves a log that must be truncated in write mode first
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
