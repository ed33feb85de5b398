package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the order book rows as CSV string. Unset prices are empty.
func RenderCSV(rows []OrderBookRow) string {
	var sb strings.Builder

	sb.WriteString("order_book_id,status,price,price_change_day,volume_day_usd,recent_deals,updated_at_block\n")

	for _, row := range rows {
		price := ""
		if row.Price.Valid {
			price = row.Price.Decimal.String()
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%d\n",
			row.ID,
			row.Status,
			price,
			row.PriceChangeDay.String(),
			row.VolumeDayUSD.String(),
			row.RecentDeals,
			row.UpdatedAtBlock,
		))
	}

	return sb.String()
}
