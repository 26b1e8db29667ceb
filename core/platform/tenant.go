package platform

import "github.com/kilianp07/agrolink/core/model"

// Tenant aliases the model type so platform consumers need a single import.
type Tenant = model.Tenant
