package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

var ticketCSVHeader = []string{
	"ticket_id", "user_id", "drawing_date", "main_numbers", "world_numbers",
	"cost", "is_winner", "winning_class", "winning_amount", "settled_at",
}

// ExportTicketsCSV handles the request to download all tickets and their results as a CSV file.
func (h *HTTPHandler) ExportTicketsCSV(c *gin.Context) {
	tickets, err := h.service.AllTickets(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=lottery_tickets.csv")

	w := csv.NewWriter(c.Writer)
	if err := w.Write(ticketCSVHeader); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	for _, t := range tickets {
		settledAt := ""
		if t.SettledAt != nil {
			settledAt = t.SettledAt.Format(time.RFC3339)
		}
		row := []string{
			t.ID,
			t.UserID,
			t.DrawingDate.Format(time.RFC3339),
			joinNumbers(t.MainNumbers),
			joinNumbers(t.WorldNumbers),
			strconv.FormatInt(t.Cost, 10),
			strconv.FormatBool(t.IsWinner),
			strconv.Itoa(t.WinningClass),
			strconv.FormatInt(t.WinningAmount, 10),
			settledAt,
		}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			return
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}
