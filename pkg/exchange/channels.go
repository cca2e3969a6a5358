package exchange

import "fmt"

// Public channel names, parameterized by symbol and interval.

func KlineChannel(symbol, interval string) string {
	return fmt.Sprintf("spot@public.kline.v3.api@%s@%s", symbol, interval)
}

func DealsChannel(symbol string) string {
	return fmt.Sprintf("spot@public.deals.v3.api@%s", symbol)
}

func DepthChannel(symbol string) string {
	return fmt.Sprintf("spot@public.increase.depth.v3.api@%s", symbol)
}

func PartialDepthChannel(symbol string, levels int) string {
	return fmt.Sprintf("spot@public.limit.depth.v3.api@%s@%d", symbol, levels)
}

func BookTickerChannel(symbol string) string {
	return fmt.Sprintf("spot@public.bookTicker.v3.api@%s", symbol)
}

func BookTickerBatchChannel(symbol string) string {
	return fmt.Sprintf("spot@public.bookTicker.batch.v3.api@%s", symbol)
}

func MiniTickerChannel(symbol string) string {
	return fmt.Sprintf("spot@public.miniTicker.v3.api@%s", symbol)
}

// Private channels require a session opened with an active listen key.

func PrivateAccountChannel() string { return "spot@private.account.v3.api" }
func PrivateDealsChannel() string   { return "spot@private.deals.v3.api" }
func PrivateOrdersChannel() string  { return "spot@private.orders.v3.api" }

// StreamURL builds the websocket endpoint; a non-empty listen key scopes the
// session to one account's private channels.
func StreamURL(base, listenKey string) string {
	if listenKey == "" {
		return base
	}
	return base + "?listenKey=" + listenKey
}
