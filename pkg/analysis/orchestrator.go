// Package analysis runs the final product analysis: it partitions the
// ranking into exact and approximate matches, enriches the displayed
// set with catalog images, and folds the images back into the result.
package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"

	"instrument-advisor-be/pkg/recommender"
	"instrument-advisor-be/pkg/store"
)

// ApproximateThreshold is the minimum overall score for a non-exact
// product to be shown as a close alternative.
const ApproximateThreshold = 50.0

// maxConcurrentImageFetches bounds the image enrichment fan-out.
const maxConcurrentImageFetches = 8

// Backend is the slice of the recommender client the orchestrator needs.
type Backend interface {
	Analyze(ctx context.Context, userInput string) (*store.AnalysisResult, error)
	ProductImages(ctx context.Context, p recommender.ImageParams) (*store.ProductImages, error)
}

// Display modes for the result set.
const (
	DisplayExact       = "exact"
	DisplayApproximate = "approximate"
)

// Outcome is a finished analysis run ready for presentation.
type Outcome struct {
	Result      *store.AnalysisResult
	DisplayMode string
	Displayed   []store.RankedProduct
	Message     string
}

// Orchestrator coordinates one analysis run end to end.
type Orchestrator struct {
	backend Backend
	logger  *log.Logger
}

// New creates an Orchestrator.
func New(backend Backend) *Orchestrator {
	return &Orchestrator{backend: backend, logger: log.Default()}
}

// Partition splits ranked products into exact matches and close
// alternatives. A product is exact when it satisfies every requirement
// regardless of score; anything else needs a score at or above the
// approximate threshold to be shown at all.
func Partition(products []store.RankedProduct) (exact, approximate []store.RankedProduct) {
	for _, p := range products {
		switch {
		case p.RequirementsMatch:
			exact = append(exact, p)
		case p.OverallScore >= ApproximateThreshold:
			approximate = append(approximate, p)
		}
	}
	return exact, approximate
}

// Run executes the analysis for the given input text and enriches the
// displayed products with images.
func (o *Orchestrator) Run(ctx context.Context, userInput string) (*Outcome, error) {
	result, err := o.backend.Analyze(ctx, userInput)
	if err != nil {
		return nil, err
	}

	exact, approximate := Partition(result.OverallRanking.RankedProducts)

	outcome := &Outcome{Result: result}
	if len(exact) > 0 {
		outcome.DisplayMode = DisplayExact
		outcome.Displayed = exact
		outcome.Message = fmt.Sprintf("Found %d product(s) matching all requirements", len(exact))
	} else {
		outcome.DisplayMode = DisplayApproximate
		outcome.Displayed = approximate
		outcome.Message = fmt.Sprintf("No exact matches found. Found %d close alternative(s)", len(approximate))
	}

	o.enrichImages(ctx, result, outcome.Displayed)

	// Re-partition so Displayed carries the enriched copies.
	exact, approximate = Partition(result.OverallRanking.RankedProducts)
	if outcome.DisplayMode == DisplayExact {
		outcome.Displayed = exact
	} else {
		outcome.Displayed = approximate
	}
	return outcome, nil
}

type productKey struct {
	vendor string
	name   string
}

// enrichImages fetches images for the displayed products with a bounded
// fan-out and merges them back into both the overall ranking and the
// vendor matches. A failed or skipped lookup leaves the product as-is.
func (o *Orchestrator) enrichImages(ctx context.Context, result *store.AnalysisResult, displayed []store.RankedProduct) {
	images := make(map[productKey]*store.ProductImages)
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentImageFetches)
	)

	for _, p := range displayed {
		if p.Vendor == "" || p.ProductName == "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p store.RankedProduct) {
			defer wg.Done()
			defer func() { <-sem }()

			var families []string
			if p.ModelFamily != "" {
				families = []string{p.ModelFamily}
			}
			productType := p.ProductType
			if productType == "" {
				productType = result.ProductType
			}
			imgs, err := o.backend.ProductImages(ctx, recommender.ImageParams{
				Vendor:        p.Vendor,
				ProductType:   productType,
				ProductName:   p.ProductName,
				ModelFamilies: families,
			})
			if err != nil {
				o.logger.Printf("[analysis] image fetch failed for %s %s: %v", p.Vendor, p.ProductName, err)
				return
			}
			mu.Lock()
			images[productKey{p.Vendor, p.ProductName}] = imgs
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(images) == 0 {
		return
	}

	ranked := result.OverallRanking.RankedProducts
	for i := range ranked {
		if imgs, ok := images[productKey{ranked[i].Vendor, ranked[i].ProductName}]; ok {
			ranked[i].TopImage = imgs.TopImage
			ranked[i].VendorLogo = imgs.VendorLogo
			ranked[i].AllImages = imgs.AllImages
		}
	}
	matches := result.VendorAnalysis.VendorMatches
	for i := range matches {
		if imgs, ok := images[productKey{matches[i].Vendor, matches[i].ProductName}]; ok {
			matches[i].TopImage = imgs.TopImage
			matches[i].VendorLogo = imgs.VendorLogo
			matches[i].AllImages = imgs.AllImages
		}
	}
}
