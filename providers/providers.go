// Package providers registers every built-in provider with fig.DefaultProviderRegistry.
package providers

import (
	_ "github.com/alanbriolat/fig/provider/inline"
	_ "github.com/alanbriolat/fig/provider/web"
)
