package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Order Book Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Order Books | %d |\n", r.Summary.OrderBooks))
	sb.WriteString(fmt.Sprintf("| Snapshots | %d |\n", r.Summary.Snapshots))
	sb.WriteString(fmt.Sprintf("| 24h Volume (USD) | %s |\n", r.Summary.VolumeDayUSD.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Latest Block | %d |\n", r.Summary.LatestBlock))
	sb.WriteString("\n")

	sb.WriteString("## Order Books\n\n")
	if len(r.OrderBooks) > 0 {
		sb.WriteString("| Order Book | Status | Price | 24h Change % | 24h Volume (USD) | Recent Deals | Block |\n")
		sb.WriteString("|------------|--------|-------|--------------|------------------|--------------|-------|\n")
		for _, row := range r.OrderBooks {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %d |\n",
				row.ID, row.Status, priceText(row), row.PriceChangeDay.StringFixed(2),
				row.VolumeDayUSD.StringFixed(2), row.RecentDeals, row.UpdatedAtBlock))
		}
	} else {
		sb.WriteString("No order books stored.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Snapshots by Resolution\n\n")
	if len(r.Resolutions) > 0 {
		sb.WriteString("| Resolution | Buckets | Deals | Volume (USD) | First Bucket | Latest Bucket |\n")
		sb.WriteString("|------------|---------|-------|--------------|--------------|---------------|\n")
		for _, row := range r.Resolutions {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
				row.Resolution, row.Buckets, row.Deals, row.VolumeUSD.StringFixed(2),
				unixText(row.FirstBucket), unixText(row.LatestBucket)))
		}
	} else {
		sb.WriteString("No snapshots stored.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func priceText(row OrderBookRow) string {
	if !row.Price.Valid {
		return "-"
	}
	return row.Price.Decimal.String()
}

func unixText(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
