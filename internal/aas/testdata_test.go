package aas

const sampleEnvironment = `{
  "assetAdministrationShells": [
    {
      "modelType": "AssetAdministrationShell",
      "id": "https://example.com/ids/aas/motor-1",
      "idShort": "Motor1",
      "assetInformation": {
        "assetKind": "Instance",
        "globalAssetId": "https://example.com/ids/asset/motor-1",
        "defaultThumbnail": {"path": "/thumbnail.png", "contentType": "image/png"}
      },
      "submodels": [{"type": "ModelReference", "keys": [{"type": "Submodel", "value": "https://example.com/ids/sm/nameplate"}]}]
    }
  ],
  "submodels": [
    {
      "modelType": "Submodel",
      "id": "https://example.com/ids/sm/nameplate",
      "idShort": "Nameplate",
      "submodelElements": [
        {"modelType": "Property", "idShort": "ManufacturerName", "valueType": "xs:string", "value": "ACME"},
        {"modelType": "Property", "idShort": "Power", "valueType": "xs:double", "value": "0"},
        {"modelType": "Property", "idShort": "Serial", "valueType": "xs:long", "value": "9007199254740993"},
        {"modelType": "Property", "idShort": "Certified", "valueType": "xs:boolean", "value": "false"},
        {"modelType": "Property", "idShort": "Built", "valueType": "xs:date", "value": "2021-03-04"},
        {"modelType": "MultiLanguageProperty", "idShort": "Description", "value": [
          {"language": "en", "text": "Electric motor"},
          {"language": "de", "text": "Elektromotor"}
        ]},
        {"modelType": "SubmodelElementCollection", "idShort": "Address", "value": [
          {"modelType": "Property", "idShort": "City", "valueType": "xs:string", "value": "Berlin"}
        ]}
      ]
    }
  ]
}`
