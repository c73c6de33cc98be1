package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/birbparty/shelf/sdk"
)

func main() {
	navigator := sdk.NewHistoryNavigator("/products")
	navigator.OnNavigate = func(target string) {
		fmt.Printf("→ navigated to %s\n", target)
	}

	config := sdk.DefaultConfig().
		WithBaseURL("http://localhost:8080/api").
		WithTimeout(10 * time.Second).
		WithRetries(1).
		WithNavigator(navigator)

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Test connectivity
	fmt.Println("Testing connectivity...")
	if err := client.Ping(ctx); err != nil {
		log.Printf("Warning: Server ping failed: %v", err)
		log.Println("Make sure shelf-backend is running on http://localhost:8080")
	} else {
		fmt.Println("✓ Backend is reachable")
	}

	// Protected calls are refused until we log in
	fmt.Println("\n--- Example 1: No session ---")
	if _, err := client.ListProducts(ctx, sdk.ProductQuery{PageSize: 5}); errors.Is(err, sdk.ErrAuthRequired) {
		fmt.Println("✓ ListProducts refused without a session")
	}

	// Log in
	fmt.Println("\n--- Example 2: Login ---")
	auth, err := client.Login(ctx, sdk.Credentials{Username: "admin", Password: "admin123"})
	if err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}
	fmt.Printf("✓ Logged in, token %s…\n", auth.Token[:min(8, len(auth.Token))])

	// Create a product
	fmt.Println("\n--- Example 3: Create ---")
	created, err := client.CreateProduct(ctx, sdk.Product{
		Name:     "Fountain Pen",
		Category: "stationery",
		Price:    24.5,
		Stock:    12,
	})
	if err != nil {
		log.Fatalf("Failed to create product: %v", err)
	}
	fmt.Printf("✓ Created: %s\n", created)

	// List the first page
	fmt.Println("\n--- Example 4: List ---")
	page, err := client.ListProducts(ctx, sdk.ProductQuery{Page: 0, PageSize: 5})
	if err != nil {
		log.Fatalf("Failed to list products: %v", err)
	}
	fmt.Printf("✓ %d of %d products\n", len(page.Items), page.Total)
	for _, p := range page.Items {
		fmt.Printf("  %-6s %-20s %8.2f %4d\n", p.ID, p.Name, p.Price, p.Stock)
	}

	// Import and export
	fmt.Println("\n--- Example 5: Import / Export ---")
	csv := "name,category,price,stock\nInk Bottle,stationery,6.5,40\n"
	if result, err := client.ImportProducts(ctx, "ink.csv", strings.NewReader(csv)); err != nil {
		log.Printf("Import failed: %v", err)
	} else {
		fmt.Printf("✓ Imported: %s\n", result)
	}
	if file, err := client.ExportProducts(ctx); err != nil {
		log.Printf("Export failed: %v", err)
	} else {
		fmt.Printf("✓ Exported %s (%d bytes)\n", file.Filename, len(file.Data))
	}

	// Error handling
	fmt.Println("\n--- Example 6: Error handling ---")
	err = client.DeleteProduct(ctx, "does-not-exist")
	var sdkErr *sdk.Error
	switch {
	case errors.Is(err, sdk.ErrSessionExpired):
		fmt.Println("Session expired, log in again")
	case errors.As(err, &sdkErr):
		fmt.Printf("✓ %s failure, status %d: %s\n", sdkErr.Kind, sdkErr.StatusCode, sdkErr.Message)
	case err == nil:
		fmt.Println("Deleted")
	}

	// Logout
	fmt.Println("\n--- Example 7: Logout ---")
	if err := client.Logout(ctx); err != nil {
		log.Fatalf("Failed to log out: %v", err)
	}
	fmt.Println("✓ Session cleared")
}
