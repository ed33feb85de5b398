package accounts

import (
	"encoding/json"
	"fmt"
)

// Technical account ids arrive as {"__kind": ..., "value": ...} unions.

type taggedValue struct {
	Kind  string          `json:"__kind"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalTechAccountID decodes a tagged technical account id.
func UnmarshalTechAccountID(data []byte) (TechAccountID, error) {
	var tv taggedValue
	if err := json.Unmarshal(data, &tv); err != nil {
		return nil, fmt.Errorf("decode tech account id: %w", err)
	}

	if tv.Kind != "Pure" {
		return OtherTechAccount{Kind: tv.Kind}, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(tv.Value, &parts); err != nil || len(parts) != 2 {
		return nil, fmt.Errorf("decode pure tech account: want [dexId, purpose]")
	}

	var dexID int
	if err := json.Unmarshal(parts[0], &dexID); err != nil {
		return nil, fmt.Errorf("decode pure tech account dex id: %w", err)
	}

	purpose, err := unmarshalPurpose(parts[1])
	if err != nil {
		return nil, err
	}
	return PureTechAccount{DexID: dexID, Purpose: purpose}, nil
}

func unmarshalPurpose(data []byte) (TechPurpose, error) {
	var tv taggedValue
	if err := json.Unmarshal(data, &tv); err != nil {
		return nil, fmt.Errorf("decode tech purpose: %w", err)
	}

	if tv.Kind != "OrderBookLiquidityKeeper" {
		return OtherPurpose{Kind: tv.Kind}, nil
	}

	var pair struct {
		BaseAssetID   json.RawMessage `json:"baseAssetId"`
		TargetAssetID json.RawMessage `json:"targetAssetId"`
	}
	if err := json.Unmarshal(tv.Value, &pair); err != nil {
		return nil, fmt.Errorf("decode trading pair: %w", err)
	}

	base, err := unmarshalTechAsset(pair.BaseAssetID)
	if err != nil {
		return nil, err
	}
	target, err := unmarshalTechAsset(pair.TargetAssetID)
	if err != nil {
		return nil, err
	}
	return OrderBookLiquidityKeeper{Pair: TradingPair{BaseAssetID: base, TargetAssetID: target}}, nil
}

func unmarshalTechAsset(data []byte) (TechAssetID, error) {
	var tv taggedValue
	if err := json.Unmarshal(data, &tv); err != nil {
		return nil, fmt.Errorf("decode tech asset: %w", err)
	}

	switch tv.Kind {
	case "Wrapped":
		var sym taggedValue
		if err := json.Unmarshal(tv.Value, &sym); err != nil {
			return nil, fmt.Errorf("decode wrapped asset: %w", err)
		}
		return WrappedAsset{Symbol: sym.Kind}, nil
	case "Escaped":
		var id string
		if err := json.Unmarshal(tv.Value, &id); err != nil {
			return nil, fmt.Errorf("decode escaped asset: %w", err)
		}
		return EscapedAsset{AssetID: id}, nil
	}
	return nil, fmt.Errorf("%w: tech asset kind %q", ErrUnmappedAsset, tv.Kind)
}
