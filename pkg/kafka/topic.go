package kafka

import "fmt"

// TopicPrefix namespaces every topic produced by this application.
const TopicPrefix = "storefront"

// Topic builds a fully qualified topic name from a domain and an action,
// e.g. Topic("order", "created") -> "storefront.order.created".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
