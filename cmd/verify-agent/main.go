// verify-agent makes one live call to the report parser so the OpenAI key and
// schema wiring can be checked without starting the server.
//
// Usage: go run ./cmd/verify-agent ["report text"]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/arunteja30/poultry-tracker/internal/ai"
)

func main() {
	_ = godotenv.Load() // Load .env if present

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	report := "15 birds died today, we used 9 bags of feed and got 20 more bags delivered. Sample weight was 1.2kg."
	if len(os.Args) > 1 {
		report = os.Args[1]
	}

	agent := ai.NewAgent(apiKey)
	ctx := context.Background()

	fmt.Printf("PARSING REPORT: %s\n", report)
	response, err := agent.ParseDailyReport(ctx, report, time.Now())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if response.IsClarificationRequest {
		fmt.Printf("\n--- CLARIFICATION ---\n%s\n", response.Clarification.Message)
		return
	}

	draft := response.Draft
	fmt.Printf("\n--- DRAFT ---\n")
	fmt.Printf("Date:       %s\n", draft.EntryDate)
	fmt.Printf("Mortality:  %d\n", draft.Mortality)
	fmt.Printf("Bags used:  %d\n", draft.FeedBagsConsumed)
	fmt.Printf("Bags added: %d\n", draft.FeedBagsAdded)
	fmt.Printf("Weight (g): %.0f\n", draft.SampledWeightGrams)
	fmt.Printf("Confidence: %.2f\n", draft.Confidence)
	fmt.Printf("Reasoning:  %s\n", draft.Reasoning)
}
