// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks sensitive data in production
// ============================================================================
// Logging helpers that automatically hide personal and financial information
// (amounts, emails, settlement references) when running in production.
// ============================================================================

package utils

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction controls whether sensitive data is masked.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	LogLevel = getLogLevel()
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func getLogLevel() int {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ============================================================================
// MASKING PATTERNS
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// USDC amounts with unit
	amountWithUnitRegex = regexp.MustCompile(`\b\d+([.,]\d{1,6})?\s*(USDC|USD|\$)\b`)

	// Settlement references: 0x-prefixed tx hashes
	txHashRegex = regexp.MustCompile(`\b0x[0-9a-fA-F]{8,64}\b`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// MaskString masks sensitive data in a string.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}

	result := input
	result = emailRegex.ReplaceAllString(result, "***@***.***")
	result = amountWithUnitRegex.ReplaceAllString(result, "*** USDC")
	result = txHashRegex.ReplaceAllString(result, "0x****")
	result = uuidRegex.ReplaceAllStringFunc(result, func(id string) string {
		if len(id) > 8 {
			return id[:8] + "..."
		}
		return "***"
	})

	return result
}

// MaskAmount masks a monetary amount.
func MaskAmount(amount decimal.Decimal) string {
	if IsProduction {
		return "***"
	}
	return amount.StringFixed(2)
}

// MaskID keeps the first 8 characters of an identifier.
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

// ============================================================================
// SAFE LOGGING
// ============================================================================

func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// ============================================================================
// DOMAIN LOGGING
// ============================================================================

// LogPositionAction logs a position lifecycle action.
func LogPositionAction(action, positionID, userID string) {
	SafeInfo("💰 Position %s: %s (user %s)", MaskID(positionID), action, MaskID(userID))
}

// LogWithdrawal logs a withdrawal gate outcome.
func LogWithdrawal(outcome, positionID, userID string) {
	SafeInfo("🏧 Withdrawal %s on position %s (user %s)", outcome, MaskID(positionID), MaskID(userID))
}

// LogSpendSave logs a spend-save decision.
func LogSpendSave(outcome, userID string, amount decimal.Decimal) {
	SafeInfo("✨ Spend & Save %s: %s USDC (user %s)", outcome, MaskAmount(amount), MaskID(userID))
}

// LogReconciliation logs a settlement callback result.
func LogReconciliation(outcome, externalRef, userID string) {
	SafeInfo("🔗 Reconciled %s as %s (user %s)", MaskID(externalRef), outcome, MaskID(userID))
}

// LogAuthAction logs an authentication event.
func LogAuthAction(action, email string, success bool) {
	status := "✅"
	if !success {
		status = "❌"
	}
	SafeInfo("%s Auth %s for %s", status, action, MaskString(email))
}

// LogWebSocket logs a websocket lifecycle event.
func LogWebSocket(action, userID string) {
	SafeDebug("🔌 WS %s (user %s)", action, MaskID(userID))
}

// LogStartup logs service startup info.
func LogStartup(appName, version, port string) {
	log.Printf("🚀 %s v%s starting on port %s (production=%t)", appName, version, port, IsProduction)
}
