package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted checks if an item has an expired TTL (is marked for deletion).
func IsDeleted(item map[string]types.AttributeValue, ttlAttr string) bool {
	attr, exists := item[ttlAttr]
	if !exists {
		return false
	}
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr returns the filter expression that excludes deleted items.
// It references the names from TTLFilterNames and the values from TTLFilterValues.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for the TTL filter.
func TTLFilterNames(ttlAttr string) map[string]string {
	return map[string]string{"#ttl": ttlAttr}
}

// TTLFilterValues returns expression attribute values for the TTL filter.
func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}
}

// mergeExprNames merges multiple expression attribute name maps.
// It returns nil when there is nothing to merge; DynamoDB rejects empty maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	var result map[string]string
	for _, m := range maps {
		for k, v := range m {
			if result == nil {
				result = make(map[string]string)
			}
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
// It returns nil when there is nothing to merge.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	var result map[string]types.AttributeValue
	for _, m := range maps {
		for k, v := range m {
			if result == nil {
				result = make(map[string]types.AttributeValue)
			}
			result[k] = v
		}
	}
	return result
}
