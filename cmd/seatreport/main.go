// Command seatreport prints seat usage per partner batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/prepwise/partner-server-go/internal/config"
	"github.com/prepwise/partner-server-go/internal/database"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
)

// nearlyFull highlights grants with this share of seats or more in use.
const nearlyFull = 0.9

func main() {
	activeOnly := flag.Bool("active", false, "only show active grants")
	flag.Parse()

	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		color.Red("DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL, database.DefaultPoolOptions())
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	usage, err := repository.NewSeatRepository(db.DB).UsageReport(ctx)
	if err != nil {
		color.Red("Failed to load seat usage: %v", err)
		os.Exit(1)
	}

	printReport(usage, *activeOnly)
}

func printReport(usage []model.SeatUsage, activeOnly bool) {
	color.Cyan("\n=== Seat Usage ===")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Partner", "Batch", "Assigned", "Seats", "Available", "Ends", "Status"})

	var shown, assigned, total int
	for _, u := range usage {
		if activeOnly && !u.IsActive {
			continue
		}
		shown++
		assigned += u.SeatsAssigned
		total += u.SeatCount

		status := "inactive"
		if u.IsActive {
			status = "active"
			if u.SeatCount > 0 && float64(u.SeatsAssigned)/float64(u.SeatCount) >= nearlyFull {
				status = "nearly full"
			}
		}

		table.Append([]string{
			u.OrganizationName,
			u.BatchName,
			strconv.Itoa(u.SeatsAssigned),
			strconv.Itoa(u.SeatCount),
			strconv.Itoa(max(u.SeatCount-u.SeatsAssigned, 0)),
			u.EndDate.Format("2006-01-02"),
			status,
		})
	}

	if shown == 0 {
		color.Yellow("No seat grants found")
		return
	}

	table.SetFooter([]string{"", "Total", strconv.Itoa(assigned), strconv.Itoa(total), strconv.Itoa(max(total-assigned, 0)), "", ""})
	table.Render()

	fmt.Println()
	color.Green("%d grants, %d of %d seats assigned", shown, assigned, total)
}
