package writer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bidask-recorder/internal/model"
)

// SnapshotRef identifies the snapshot that levels belong to.
type SnapshotRef struct {
	AssetID     int64
	SnapshotID  int64
	ChannelUUID string
	ReceivedAt  time.Time
}

// BuildLevels expands a book into level rows: bids then asks, ranked from 1
// in array order. Cumulative columns are filled only for levels that carry
// an exchange running total.
func BuildLevels(asset *model.Asset, ref SnapshotRef, book model.BookPayload, pricePlaces int32) ([]model.OrderBookLevel, error) {
	rows := make([]model.OrderBookLevel, 0, len(book.Bids)+len(book.Asks))

	for _, side := range []struct {
		side   model.Side
		levels []model.Level
	}{
		{model.SideBid, book.Bids},
		{model.SideAsk, book.Asks},
	} {
		var runningCost int64
		for i, lvl := range side.levels {
			row, err := buildLevel(asset, ref, side.side, i+1, lvl, pricePlaces)
			if err != nil {
				return nil, fmt.Errorf("%s rank %d: %w", side.side, i+1, err)
			}

			runningCost += row.LevelCostAmount
			if lvl.Total.Valid {
				if err := setCumulative(asset, &row, lvl.Total.Decimal, runningCost, pricePlaces); err != nil {
					return nil, fmt.Errorf("%s rank %d: %w", side.side, i+1, err)
				}
			}

			if err := row.Validate(); err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func buildLevel(asset *model.Asset, ref SnapshotRef, side model.Side, rank int, lvl model.Level, pricePlaces int32) (model.OrderBookLevel, error) {
	priceBase, err := asset.PriceToBase(lvl.Price)
	if err != nil {
		return model.OrderBookLevel{}, fmt.Errorf("price: %w", err)
	}
	qtyBase, err := asset.SizeToBase(lvl.Quantity)
	if err != nil {
		return model.OrderBookLevel{}, fmt.Errorf("quantity: %w", err)
	}

	priceDisplay, err := asset.PriceToDisplay(priceBase, pricePlaces)
	if err != nil {
		return model.OrderBookLevel{}, err
	}
	qtyDisplay, err := asset.SizeToDisplay(qtyBase)
	if err != nil {
		return model.OrderBookLevel{}, err
	}

	// price × quantity ÷ size factor, in price base units
	costBase, err := asset.PriceToBase(priceDisplay.Mul(qtyDisplay))
	if err != nil {
		return model.OrderBookLevel{}, fmt.Errorf("level cost: %w", err)
	}
	costDisplay, err := asset.PriceToDisplay(costBase, pricePlaces)
	if err != nil {
		return model.OrderBookLevel{}, err
	}

	return model.OrderBookLevel{
		AssetID:          ref.AssetID,
		SnapshotID:       ref.SnapshotID,
		ChannelUUID:      ref.ChannelUUID,
		ReceivedAt:       ref.ReceivedAt,
		Side:             side,
		LevelRank:        rank,
		PriceAmount:      priceBase,
		QuantityAmount:   qtyBase,
		LevelCostAmount:  costBase,
		PriceDisplay:     priceDisplay,
		QuantityDisplay:  qtyDisplay,
		LevelCostDisplay: costDisplay,
		PriceDenom:       asset.BasePriceDenom,
		QuantityDenom:    asset.BaseSizeDenom,
		TotalOrders:      lvl.TotalOrders,
	}, nil
}

func setCumulative(asset *model.Asset, row *model.OrderBookLevel, total decimal.Decimal, costBase int64, pricePlaces int32) error {
	cumBase, err := asset.SizeToBase(total)
	if err != nil {
		return fmt.Errorf("cumulative: %w", err)
	}
	cumDisplay, err := asset.SizeToDisplay(cumBase)
	if err != nil {
		return err
	}
	costDisplay, err := asset.PriceToDisplay(costBase, pricePlaces)
	if err != nil {
		return err
	}

	row.CumulativeAmount = &cumBase
	row.CumulativeDisplay = decimal.NewNullDecimal(cumDisplay)
	row.CumulativeCostAmount = &costBase
	row.CumulativeCostDisplay = decimal.NewNullDecimal(costDisplay)
	return nil
}
