// Benchmark tool for testing Heron against labeled claims data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled claim data (with fraud labels)
//   2. Seeds the referenced policies, then submits each claim to Heron
//   3. Compares Heron's verdict (flagged vs approved) with actual fraud labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim represents a row from the claims dataset
type LabeledClaim struct {
	PolicyID     string
	CustomerID   string
	IncidentDate string
	FilingDate   string
	Category     string
	Amount       float64
	RepairShop   string
	PhotoCount   int
	Description  string
	IsFraud      bool
}

// SubmitRequest is the Heron API request format
type SubmitRequest struct {
	PolicyID       string   `json:"policyId"`
	CustomerID     string   `json:"customerId"`
	IncidentDate   string   `json:"incidentDate"`
	FilingDate     string   `json:"filingDate"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	RepairShop     string   `json:"repairShop"`
	Amount         float64  `json:"amount"`
	Photos         []string `json:"photos"`
	IncidentReport string   `json:"incidentReport"`
	RepairEstimate string   `json:"repairEstimate"`
}

// SubmitResponse is the Heron API response format
type SubmitResponse struct {
	ClaimID           string  `json:"claimId"`
	EligibilityStatus string  `json:"eligibilityStatus"`
	ApprovalStatus    string  `json:"approvalStatus"`
	FraudScore        float64 `json:"fraudScore"`
	PayoutAmount      float64 `json:"payoutAmount"`
	HumanReview       bool    `json:"humanReview"`
}

// Flagged reports whether Heron treated the claim as suspicious.
func (r *SubmitResponse) Flagged() bool {
	return r.HumanReview || r.ApprovalStatus == "NEEDS_REVIEW" || r.FraudScore > 0.4
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Fraud flagged
	FalsePositives int64 // Non-fraud flagged
	TrueNegatives  int64 // Non-fraud approved cleanly
	FalseNegatives int64 // Fraud approved cleanly (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud claims")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           HERON BENCHMARK - Claims Fraud Detection            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Heron URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fraud Only:  %v\n", *fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  cd heron && go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// Read claims data
	fmt.Printf("\nReading claims data from %s...\n", *csvPath)
	claims, err := readClaimsCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	// Count fraud vs non-fraud
	fraudCount := 0
	for _, c := range claims {
		if c.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(claims)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(claims)-fraudCount, 100*float64(len(claims)-fraudCount)/float64(len(claims)))

	// Seed the referenced policies so eligibility checks pass
	fmt.Println("\nSeeding policies...")
	seeded, err := seedPolicies(claims, *baseURL, *tenantID)
	if err != nil {
		fmt.Printf("ERROR: Failed to seed policies: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Seeded %d policies\n", seeded)

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readClaimsCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var claims []LabeledClaim
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := record[colIndex["is_fraud"]] == "1"

		// Apply filters
		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud claims
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		amount, _ := strconv.ParseFloat(record[colIndex["amount"]], 64)
		photoCount, _ := strconv.Atoi(record[colIndex["photo_count"]])

		c := LabeledClaim{
			PolicyID:     record[colIndex["policy_id"]],
			CustomerID:   record[colIndex["customer_id"]],
			IncidentDate: record[colIndex["incident_date"]],
			FilingDate:   record[colIndex["filing_date"]],
			Category:     record[colIndex["category"]],
			Amount:       amount,
			RepairShop:   record[colIndex["repair_shop"]],
			PhotoCount:   photoCount,
			IsFraud:      isFraud,
		}
		if i, ok := colIndex["description"]; ok {
			c.Description = record[i]
		}

		claims = append(claims, c)

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

// seedPolicies creates an active comprehensive policy for each unique
// policy ID referenced by the dataset.
func seedPolicies(claims []LabeledClaim, baseURL, tenantID string) (int, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	seen := make(map[string]bool)
	seeded := 0

	for _, c := range claims {
		if seen[c.PolicyID] {
			continue
		}
		seen[c.PolicyID] = true

		policy := map[string]any{
			"id":            c.PolicyID,
			"customerId":    c.CustomerID,
			"coverageType":  "comprehensive",
			"coverageLimit": 100000.0,
			"deductible":    500.0,
			"active":        true,
		}

		body, err := json.Marshal(policy)
		if err != nil {
			return seeded, err
		}

		req, err := http.NewRequest(http.MethodPost, baseURL+"/policies", bytes.NewReader(body))
		if err != nil {
			return seeded, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			return seeded, err
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return seeded, fmt.Errorf("policy %s: status %d", c.PolicyID, resp.StatusCode)
		}
		seeded++
	}

	return seeded, nil
}

func runBenchmark(claims []LabeledClaim, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledClaim, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := submitClaim(client, baseURL, tenantID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.PolicyID, err)
					}
					continue
				}

				// Track actual labels
				if c.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				// Calculate confusion matrix
				predicted := result.Flagged()
				actual := c.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Category: %-13s | Amount: $%12.2f | Fraud: %-5v | Heron: %-12s (%.2f) | Payout: $%.2f\n",
						status,
						c.PolicyID,
						c.Category,
						c.Amount,
						c.IsFraud,
						result.ApprovalStatus,
						result.FraudScore,
						result.PayoutAmount,
					)
				}
			}
		}()
	}

	// Send work
	for _, c := range claims {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func submitClaim(client *http.Client, baseURL, tenantID string, c LabeledClaim) (*SubmitResponse, error) {
	// Synthetic per-claim photo refs keep the duplicate-image check out
	// of the benchmark's way.
	photos := make([]string, c.PhotoCount)
	for i := range photos {
		photos[i] = fmt.Sprintf("%s-%s-photo-%d.jpg", c.PolicyID, c.FilingDate, i)
	}

	description := c.Description
	if description == "" {
		description = fmt.Sprintf("%s claim filed against %s", c.Category, c.PolicyID)
	}

	req := SubmitRequest{
		PolicyID:       c.PolicyID,
		CustomerID:     c.CustomerID,
		IncidentDate:   c.IncidentDate,
		FilingDate:     c.FilingDate,
		Category:       c.Category,
		Description:    description,
		RepairShop:     c.RepairShop,
		Amount:         c.Amount,
		Photos:         photos,
		IncidentReport: "report.pdf",
		RepairEstimate: "estimate.pdf",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED     CLEAN")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged claims, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
