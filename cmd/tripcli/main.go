package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/client"
)

type cliConfig struct {
	ServerURL string        `envconfig:"TRIPCLI_SERVER_URL" default:"http://localhost:8080"`
	DataDir   string        `envconfig:"TRIPCLI_DATA_DIR"`
	Timeout   time.Duration `envconfig:"TRIPCLI_TIMEOUT" default:"30s"`
}

func main() {
	_ = godotenv.Load()
	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".wayfarer", "trips")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL, cfg.Timeout)
	local := client.NewLocalStore(cfg.DataDir)
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "plan":
		err = runPlan(ctx, api, local, args)
	case "replay":
		if len(args) < 1 {
			usageExit("tripcli replay <session_id>")
		}
		_, err = api.Replay(ctx, args[0], printEvent)
	case "trips":
		err = runTrips(ctx, api)
	case "show":
		if len(args) < 1 {
			usageExit("tripcli show <trip_id>")
		}
		err = runShow(ctx, api, local, args[0])
	case "ics":
		if len(args) < 1 {
			usageExit("tripcli ics <trip_id> [file]")
		}
		err = runCalendar(ctx, api, args)
	case "delete":
		if len(args) < 1 {
			usageExit("tripcli delete <trip_id>")
		}
		err = api.DeleteTrip(ctx, args[0])
		if err == nil {
			err = local.Delete(args[0])
		}
	case "saved":
		err = runSaved(local)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tripcli: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: tripcli <command> [args]")
	fmt.Println("  plan -destination <city> -days <n> -start <YYYY-MM-DD> -interests a,b [flags]")
	fmt.Println("                      - plan a trip, streaming progress, and save it locally")
	fmt.Println("  replay <session_id> - print the recorded events of a session")
	fmt.Println("  trips               - list trips saved on the server")
	fmt.Println("  show <trip_id>      - print a trip (server first, then local copy)")
	fmt.Println("  ics <trip_id> [file] - download the calendar export")
	fmt.Println("  delete <trip_id>    - delete a trip on the server and locally")
	fmt.Println("  saved               - list trips saved locally")
}

func usageExit(usage string) {
	fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
	os.Exit(1)
}

func runPlan(ctx context.Context, api *client.Client, local *client.LocalStore, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	var req model.TripRequest
	var interests string
	fs.StringVar(&req.Destination, "destination", "", "destination city")
	fs.IntVar(&req.Days, "days", 3, "number of days (1-5)")
	fs.StringVar(&req.StartDate, "start", time.Now().AddDate(0, 0, 14).Format(model.DateLayout), "first day, YYYY-MM-DD")
	fs.IntVar(&req.Travelers, "travelers", 1, "number of travelers")
	fs.Float64Var(&req.BudgetPerDay, "budget", 150, "budget per person per day")
	fs.StringVar(&req.Currency, "currency", "USD", "ISO currency code")
	fs.StringVar(&interests, "interests", "food,history", "comma separated interest ids")
	fs.StringVar(&req.HotelLocation, "hotel", "", "hotel or neighborhood, optional")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.Interests = lo.FilterMap(strings.Split(interests, ","), func(s string, _ int) (model.InterestID, bool) {
		s = strings.TrimSpace(s)
		return model.InterestID(s), s != ""
	})

	state, err := api.Plan(ctx, req, printEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if it, _ := state.Itinerary(); it == nil {
		if msg := state.LastError(); msg != "" {
			return errors.New(msg)
		}
		if err != nil {
			return err
		}
		return errors.New("planning finished without an itinerary")
	}
	trip, err := local.SaveResult(req, state, time.Now())
	if err != nil {
		return err
	}
	printItinerary(&trip.Itinerary)
	fmt.Printf("\nSaved as %s\n", trip.ID)
	return nil
}

func printEvent(ev model.Event) error {
	switch ev.Type {
	case model.EventStep:
		if ev.Step == nil {
			return nil
		}
		prefix := map[model.StepType]string{
			model.StepThinking:   "…",
			model.StepToolUse:    "→",
			model.StepToolResult: "←",
			model.StepError:      "!",
			model.StepComplete:   "✓",
		}[ev.Step.Type]
		if prefix == "" {
			prefix = "·"
		}
		fmt.Printf("%s %s\n", prefix, ev.Step.Content)
	case model.EventItinerary:
		if ev.TripID != "" {
			fmt.Printf("✓ itinerary received (%s)\n", ev.TripID)
		}
	}
	return nil
}

func printItinerary(it *model.Itinerary) {
	fmt.Printf("\n%s: %d days, estimated %.0f %s of %.0f budget\n",
		it.Destination, len(it.Days), it.TotalEstimatedCost, it.Currency, it.TotalBudget)
	for _, day := range it.Days {
		fmt.Printf("\nDay %d (%s): %s\n", day.DayNumber, day.Date, day.Theme)
		if day.Weather != nil {
			fmt.Printf("  %s %s, %.0f°/%.0f°, %.0f%% rain\n", day.Weather.Icon, day.Weather.Condition,
				day.Weather.TempHigh, day.Weather.TempLow, day.Weather.RainChance)
		}
		for _, a := range day.Activities {
			fmt.Printf("  %-8s %s (%s)\n", a.Time, a.Name, a.Duration)
		}
	}
	for _, tip := range it.Tips {
		fmt.Printf("\n* %s", tip)
	}
	if len(it.Tips) > 0 {
		fmt.Println()
	}
}

func runTrips(ctx context.Context, api *client.Client) error {
	list, err := api.Trips(ctx)
	if err != nil {
		return err
	}
	for _, t := range list {
		fmt.Printf("%s  %s  %s  %d days\n", t.ID, t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Itinerary.Destination, len(t.Itinerary.Days))
	}
	return nil
}

func runShow(ctx context.Context, api *client.Client, local *client.LocalStore, id string) error {
	trip, err := api.Trip(ctx, id)
	if err != nil {
		var lerr error
		if trip, lerr = local.Load(id); lerr != nil {
			return err
		}
	}
	printItinerary(&trip.Itinerary)
	return nil
}

func runCalendar(ctx context.Context, api *client.Client, args []string) error {
	ics, err := api.Calendar(ctx, args[0])
	if err != nil {
		return err
	}
	out := args[0] + ".ics"
	if len(args) > 1 {
		out = args[1]
	}
	if err := os.WriteFile(out, ics, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}

func runSaved(local *client.LocalStore) error {
	list, err := local.List()
	if err != nil {
		return err
	}
	for _, t := range list {
		fmt.Printf("%s  %s  %s\n", t.ID, t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Itinerary.Destination)
	}
	return nil
}
